package domain

import (
	"fmt"
	"slices"
)

// TruncationPolicy is the set of switches deciding which connections get
// cleaned before a test. Force and skip lists hold plain connection names
// compared case-sensitively.
type TruncationPolicy struct {
	Disabled bool     `yaml:"disable" json:"disable"`
	SkipAll  bool     `yaml:"skip_all" json:"skip_all"`
	Forced   []string `yaml:"force" json:"force,omitempty"`
	Skipped  []string `yaml:"skip" json:"skip,omitempty"`
}

// Resolution is the outcome of resolving a policy for one truncation call.
type Resolution struct {
	// Disabled means truncation is globally off and no database call may happen.
	Disabled bool
	// Manual is set when the caller named the target connections explicitly.
	Manual      bool
	Connections []string
}

// Resolve computes the connections to truncate.
//
// Manual targets have the highest priority and must belong to active.
// Otherwise SkipAll yields exactly the forced list (never validated, forced
// connections may not be constructed yet) and the default yields active
// minus the skipped list.
func (p TruncationPolicy) Resolve(active, manual []string) (Resolution, error) {
	if p.Disabled {
		return Resolution{Disabled: true}, nil
	}

	if len(manual) > 0 {
		out := make([]string, 0, len(manual))
		for _, name := range manual {
			if !slices.Contains(active, name) {
				return Resolution{}, fmt.Errorf("%w %q", ErrUnknownConnection, name)
			}
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
		return Resolution{Manual: true, Connections: out}, nil
	}

	if p.SkipAll {
		return Resolution{Connections: append([]string{}, p.Forced...)}, nil
	}

	return Resolution{Connections: Without(active, p.Skipped...)}, nil
}

// Clone returns a deep copy so snapshots are not aliased by later edits.
func (p TruncationPolicy) Clone() TruncationPolicy {
	p.Forced = slices.Clone(p.Forced)
	p.Skipped = slices.Clone(p.Skipped)
	return p
}

// Report describes what a truncation call did.
type Report struct {
	Disabled    bool               `json:"disabled"`
	Manual      bool               `json:"manual,omitempty"`
	Connections []ConnectionReport `json:"connections"`
}

// ConnectionReport lists the tables truncated on one connection.
type ConnectionReport struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// Names returns the connections covered by the report.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Connections))
	for _, c := range r.Connections {
		names = append(names, c.Name)
	}
	return names
}
