package policy

import (
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/policy"
)

// Policy holds operator-controlled truncation settings loaded from a YAML file.
type Policy struct {
	// Truncation seeds the policy store when the suite starts.
	Truncation domain.TruncationPolicy `yaml:"truncation"`
	// Tests maps a test name to the overrides applied while it runs.
	Tests map[string]TestPolicy `yaml:"tests"`
}

// TestPolicy lists per-test overrides. Unset switches leave the current
// policy alone; force and skip lists may use "*".
type TestPolicy struct {
	Disable *bool    `yaml:"disable"`
	SkipAll *bool    `yaml:"skip_all"`
	Force   []string `yaml:"force"`
	Skip    []string `yaml:"skip"`
}

// Overrides returns the overrides configured for test, in a fixed order:
// switches first, then the force and skip lists.
func (p *Policy) Overrides(test string) []port.PolicyOverride {
	tp, ok := p.Tests[test]
	if !ok {
		return nil
	}

	var out []port.PolicyOverride
	if tp.Disable != nil {
		if *tp.Disable {
			out = append(out, policy.Disable())
		} else {
			out = append(out, policy.Enable())
		}
	}
	if tp.SkipAll != nil {
		if *tp.SkipAll {
			out = append(out, policy.SkipAll())
		} else {
			out = append(out, policy.DoAll())
		}
	}
	if tp.Force != nil {
		out = append(out, policy.Force(tp.Force...))
	}
	if tp.Skip != nil {
		out = append(out, policy.Skip(tp.Skip...))
	}
	return out
}
