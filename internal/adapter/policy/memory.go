package policy

import (
	"context"
	"sync"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// MemoryStore keeps the policy in a process-wide object. Safe for
// concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	policy domain.TruncationPolicy
}

var (
	_ port.PolicyStore    = (*MemoryStore)(nil)
	_ port.PolicyResetter = (*MemoryStore)(nil)
)

func NewMemoryStore(initial domain.TruncationPolicy) *MemoryStore {
	return &MemoryStore{policy: initial.Clone()}
}

func (m *MemoryStore) Policy(context.Context) (domain.TruncationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy.Clone(), nil
}

func (m *MemoryStore) SetPolicy(_ context.Context, p domain.TruncationPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p.Clone()
	return nil
}

// Reset restores the zero policy: everything active gets truncated.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = domain.TruncationPolicy{}
}
