package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/guillermoBallester/tablespy/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tablespy",
		Short: "Track and truncate the tables your tests write to",
		Long: `tablespy installs an AFTER INSERT trigger on every table of a test database.
Each trigger records its table in a collector table, so only the tables a
test actually touched need to be emptied before the next one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file with connections (env: TABLESPY_CONFIG)")
	flags.String("env-file", "", "dotenv file loaded before env vars (default: .env when present)")
	flags.String("database-url", "", "database URL of the \"test\" connection (env: TABLESPY_DATABASE_URL)")
	flags.String("driver", "", "driver of --database-url: postgres, mysql or sqlite (inferred when empty)")
	flags.String("collector-mode", "", "collector mode of every connection: temp or perm")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("policy-file", "", "YAML truncation policy file (env: TABLESPY_POLICY_FILE)")
	flags.String("audit-log", "", "append truncation events as NDJSON to this file")
	flags.Bool("otel", false, "enable OpenTelemetry tracing and metrics")

	root.AddCommand(
		newStatusCmd(),
		newTruncateCmd(),
		newRestartCmd(),
		newModeCmd(),
		newTeardownCmd(),
		newDropCmd(),
		newServeCmd(),
	)
	return root
}

// overridesFromFlags maps the flags the user actually set onto config
// overrides, leaving the rest to env vars and config files.
func overridesFromFlags(flags *pflag.FlagSet) (config.Overrides, error) {
	var o config.Overrides

	stringFlags := map[string]**string{
		"config":            &o.ConfigFile,
		"env-file":          &o.EnvFile,
		"database-url":      &o.DatabaseURL,
		"driver":            &o.Driver,
		"collector-mode":    &o.CollectorMode,
		"log-level":         &o.LogLevel,
		"log-format":        &o.LogFormat,
		"policy-file":       &o.PolicyFile,
		"transport":         &o.Transport,
		"http-addr":         &o.HTTPAddr,
		"http-bearer-token": &o.HTTPBearerToken,
	}
	for name, dst := range stringFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return o, err
		}
		*dst = &v
	}

	var err error
	if o.AuditLog, err = flags.GetString("audit-log"); err != nil {
		return o, err
	}
	if o.OTelEnabled, err = flags.GetBool("otel"); err != nil {
		return o, err
	}
	return o, nil
}

// newLogger writes to w, never stdout, which the stdio transport owns.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
