package port

import (
	"context"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
)

// PolicyStore is the shared channel holding the current truncation policy.
// It is read fresh on every truncation call.
type PolicyStore interface {
	Policy(ctx context.Context) (domain.TruncationPolicy, error)
	SetPolicy(ctx context.Context, p domain.TruncationPolicy) error
}

// PolicyResetter is implemented by stores that can drop back to the zero
// policy without a round trip through SetPolicy.
type PolicyResetter interface {
	Reset()
}

// PolicyOverride mutates a policy for the duration of one test. active is
// the current active connection set, used to expand "*".
type PolicyOverride interface {
	Override(p *domain.TruncationPolicy, active []string)
}

// FixtureLoader inserts the data a test needs after truncation.
type FixtureLoader interface {
	Load(ctx context.Context, test string) error
}
