package policy

import (
	"slices"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
)

// Override adapts a function to port.PolicyOverride.
type Override func(p *domain.TruncationPolicy, active []string)

var _ port.PolicyOverride = Override(nil)

func (f Override) Override(p *domain.TruncationPolicy, active []string) {
	f(p, active)
}

// Disable turns truncation off entirely.
func Disable() Override {
	return func(p *domain.TruncationPolicy, _ []string) { p.Disabled = true }
}

// Enable clears the global disable switch.
func Enable() Override {
	return func(p *domain.TruncationPolicy, _ []string) { p.Disabled = false }
}

// SkipAll prevents automatic truncation; only forced connections are cleaned.
func SkipAll() Override {
	return func(p *domain.TruncationPolicy, _ []string) { p.SkipAll = true }
}

// DoAll restores automatic truncation of every non-skipped connection.
func DoAll() Override {
	return func(p *domain.TruncationPolicy, _ []string) { p.SkipAll = false }
}

// Force replaces the forced list. "*" stands for every active connection
// and no argument resets the list.
func Force(connections ...string) Override {
	return func(p *domain.TruncationPolicy, active []string) {
		p.Forced = expand(connections, active)
	}
}

// ForceAll forces every active connection.
func ForceAll() Override {
	return Force(domain.AllConnections)
}

// Skip replaces the skipped list. "*" stands for every active connection
// and no argument resets the list.
func Skip(connections ...string) Override {
	return func(p *domain.TruncationPolicy, active []string) {
		p.Skipped = expand(connections, active)
	}
}

// Chain applies overrides in order.
func Chain(overrides ...port.PolicyOverride) Override {
	return func(p *domain.TruncationPolicy, active []string) {
		for _, o := range overrides {
			o.Override(p, active)
		}
	}
}

func expand(connections, active []string) []string {
	if len(connections) == 0 {
		return nil
	}
	return slices.Clone(domain.ExpandAll(connections, active))
}
