package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/guillermoBallester/tablespy/internal/adapter/connection"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/service"
)

// errSessionScoped is returned by one-shot commands on temp connections: a
// temporary collector dies with the session of the process that created it.
var errSessionScoped = errors.New("temporary collectors only live inside a running process; use 'tablespy serve' or collector_mode=perm")

// withApp runs fn with a wired app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

// requirePersistent rejects connections configured with a temporary collector.
func (a *app) requirePersistent(names []string) error {
	for _, name := range names {
		cfg, ok := a.conns.Config(name)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownConnection, name)
		}
		mode, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, ""))
		if err != nil {
			return err
		}
		if mode.IsTemp() {
			return fmt.Errorf("connection %q: %w", name, errSessionScoped)
		}
	}
	return nil
}

// unstartedSniffer builds the built-in sniffer of a connection without
// installing anything, for commands that only remove objects.
func (a *app) unstartedSniffer(ctx context.Context, name string) (*service.Sniffer, error) {
	conn, err := a.conns.Connection(ctx, name)
	if err != nil {
		return nil, err
	}
	dialect, ok := connection.Dialects[conn.Config().Driver]
	if !ok {
		return nil, fmt.Errorf("%w %q", domain.ErrUnsupportedDriver, conn.Config().Driver)
	}
	return service.NewSniffer(conn, dialect, a.logger, a.inst)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [connection...]",
		Short: "Show the collector mode, trigger count and dirty tables of connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				names := a.targets(args)
				if err := a.requirePersistent(names); err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CONNECTION\tMODE\tTRIGGERS\tDIRTY")
				for _, name := range names {
					ts, err := a.sniffers.GetTriggerSniffer(ctx, name)
					if err != nil {
						return err
					}
					triggers, err := ts.Triggers(ctx)
					if err != nil {
						return err
					}
					dirty, err := ts.DirtyTables(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, ts.Mode(), len(triggers), joinOrDash(dirty))
				}
				return w.Flush()
			})
		},
	}
}

func newTruncateCmd() *cobra.Command {
	var test string
	cmd := &cobra.Command{
		Use:   "truncate [connection...]",
		Short: "Truncate dirty tables of the named connections, or as the truncation policy decides",
		Long: `Without arguments the truncation policy decides which connections are cleaned.
Named connections, or * for every active one, are cleaned regardless of the
force and skip lists. With --test the per-test overrides of the policy file
apply for this run only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requirePersistent(a.targets(domain.ExpandAll(args, a.conns.ActiveConnections()))); err != nil {
					return err
				}

				if test == "" {
					report, err := a.truncation.Truncate(ctx, args...)
					printReport(cmd.OutOrStdout(), report)
					return err
				}

				if len(args) > 0 {
					return errors.New("--test cannot be combined with connection names")
				}
				if a.policy == nil {
					return errors.New("--test needs a policy file (--policy-file or TABLESPY_POLICY_FILE)")
				}

				suite := service.NewSuite(a.truncation, a.store, a.conns, a.sniffers, a.logger,
					service.WithResetOnStart(),
					service.WithDefaultPolicy(a.policy.Truncation),
				)
				if err := suite.StartSuite(ctx); err != nil {
					return err
				}
				report, err := suite.StartTest(ctx, test, a.policy.Overrides(test)...)
				printReport(cmd.OutOrStdout(), report)
				return errors.Join(err, suite.EndTest(ctx))
			})
		},
	}
	cmd.Flags().StringVar(&test, "test", "", "apply the policy file overrides of this test")
	return cmd
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <connection>",
		Short: "Recreate the collector and triggers, picking up new tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				name := args[0]
				if err := a.requirePersistent(args); err != nil {
					return err
				}
				ts, err := a.sniffers.GetTriggerSniffer(ctx, name)
				if err != nil {
					return err
				}
				if err := ts.Restart(ctx); err != nil {
					return err
				}
				triggers, err := ts.Triggers(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d triggers installed\n", name, len(triggers))
				return nil
			})
		},
	}
}

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <connection>",
		Short: "Show the configured collector mode of a connection",
		Long: `mode prints the collector mode a connection is configured with. Switching
modes rebuilds the collector inside a live session, so it is only offered by
the set_mode tool of 'tablespy serve'; for one-shot commands change the
collector_mode option or pass --collector-mode.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(_ context.Context, a *app) error {
				name := args[0]
				cfg, ok := a.conns.Config(name)
				if !ok {
					return fmt.Errorf("%w: %q", domain.ErrUnknownConnection, name)
				}
				mode, err := domain.ParseMode(cfg.Option(domain.OptionCollectorMode, ""))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, mode)
				return nil
			})
		},
	}
}

func newTeardownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teardown [connection...]",
		Short: "Remove triggers, collector and helper routines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var errs []error
				for _, name := range a.targets(args) {
					s, err := a.unstartedSniffer(ctx, name)
					if err == nil {
						err = s.Shutdown(ctx)
					}
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", name, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: removed\n", name)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newDropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop <connection> [table...]",
		Short: "Drop the given tables, or every table, of a connection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop tables without --yes")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				name := args[0]
				s, err := a.unstartedSniffer(ctx, name)
				if err != nil {
					return err
				}

				tables := args[1:]
				if len(tables) == 0 {
					if tables, err = s.AllTables(ctx, true); err != nil {
						return err
					}
				}
				tables = domain.Without(tables, domain.CollectorTable)
				if err := s.DropTables(ctx, tables); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: dropped %s\n", name, joinOrDash(tables))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping tables")
	return cmd
}

func printReport(w io.Writer, report domain.Report) {
	if report.Disabled {
		fmt.Fprintln(w, "truncation disabled")
		return
	}
	for _, c := range report.Connections {
		fmt.Fprintf(w, "%s: %s\n", c.Name, joinOrDash(c.Tables))
	}
}

func joinOrDash(tables []string) string {
	if len(tables) == 0 {
		return "-"
	}
	return strings.Join(tables, ", ")
}
