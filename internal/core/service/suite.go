package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Suite drives truncation around the tests of a suite: it cleans before
// each test, applies per-test policy overrides and restores the policy
// afterwards.
type Suite struct {
	truncation *TruncationService
	store      port.PolicyStore
	conns      port.ConnectionRegistry
	sniffers   *SnifferRegistry
	logger     *slog.Logger

	fixtures      port.FixtureLoader
	defaults      *domain.TruncationPolicy
	resetOnStart  bool
	shutdownOnEnd bool

	snapshot *domain.TruncationPolicy
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithFixtures loads fixtures after every truncation.
func WithFixtures(loader port.FixtureLoader) SuiteOption {
	return func(s *Suite) { s.fixtures = loader }
}

// WithDefaultPolicy seeds the policy store when the suite starts.
func WithDefaultPolicy(p domain.TruncationPolicy) SuiteOption {
	return func(s *Suite) {
		p = p.Clone()
		s.defaults = &p
	}
}

// WithResetOnStart clears whatever a previous suite left in the policy
// store before the defaults are seeded.
func WithResetOnStart() SuiteOption {
	return func(s *Suite) { s.resetOnStart = true }
}

// WithShutdownOnEnd removes triggers and collectors when the suite ends.
func WithShutdownOnEnd() SuiteOption {
	return func(s *Suite) { s.shutdownOnEnd = true }
}

func NewSuite(truncation *TruncationService, store port.PolicyStore, conns port.ConnectionRegistry, sniffers *SnifferRegistry, logger *slog.Logger, opts ...SuiteOption) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Suite{
		truncation: truncation,
		store:      store,
		conns:      conns,
		sniffers:   sniffers,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Suite) StartSuite(ctx context.Context) error {
	if s.resetOnStart {
		if err := s.resetPolicy(ctx); err != nil {
			return err
		}
	}
	if s.defaults == nil {
		return nil
	}
	if err := s.store.SetPolicy(ctx, s.defaults.Clone()); err != nil {
		return fmt.Errorf("seeding truncation policy: %w", err)
	}
	return nil
}

func (s *Suite) resetPolicy(ctx context.Context) error {
	if r, ok := s.store.(port.PolicyResetter); ok {
		r.Reset()
		return nil
	}
	if err := s.store.SetPolicy(ctx, domain.TruncationPolicy{}); err != nil {
		return fmt.Errorf("resetting truncation policy: %w", err)
	}
	return nil
}

// StartTest snapshots the policy, applies the test overrides, truncates and
// loads the test fixtures.
func (s *Suite) StartTest(ctx context.Context, test string, overrides ...port.PolicyOverride) (domain.Report, error) {
	current, err := s.store.Policy(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("reading truncation policy: %w", err)
	}
	snapshot := current.Clone()
	s.snapshot = &snapshot

	if len(overrides) > 0 {
		active := s.conns.ActiveConnections()
		for _, o := range overrides {
			o.Override(&current, active)
		}
		if err := s.store.SetPolicy(ctx, current); err != nil {
			return domain.Report{}, fmt.Errorf("applying overrides: %w", err)
		}
	}

	report, err := s.truncation.Truncate(ctx)
	if err != nil {
		return report, err
	}

	if s.fixtures != nil {
		if err := s.fixtures.Load(ctx, test); err != nil {
			return report, fmt.Errorf("loading fixtures for %s: %w", test, err)
		}
	}

	s.logger.DebugContext(ctx, "test started",
		slog.String("test", test),
		slog.Any("truncated", report.Names()),
	)
	return report, nil
}

// EndTest restores the policy captured by StartTest. Tables are left
// untouched so a failing test can be inspected.
func (s *Suite) EndTest(ctx context.Context) error {
	if s.snapshot == nil {
		return nil
	}
	p := *s.snapshot
	s.snapshot = nil
	if err := s.store.SetPolicy(ctx, p); err != nil {
		return fmt.Errorf("restoring truncation policy: %w", err)
	}
	return nil
}

func (s *Suite) EndSuite(ctx context.Context) error {
	if !s.shutdownOnEnd || s.sniffers == nil {
		return nil
	}
	return s.sniffers.Shutdown(ctx)
}
