package policy

import (
	"fmt"
	"os"
	"slices"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}

func validate(pol *Policy) error {
	for field, names := range map[string][]string{
		"truncation.force": pol.Truncation.Forced,
		"truncation.skip":  pol.Truncation.Skipped,
	} {
		if slices.Contains(names, "") {
			return fmt.Errorf("%s contains an empty connection name", field)
		}
		// defaults are stored as-is and the resolver never expands wildcards
		if slices.Contains(names, domain.AllConnections) {
			return fmt.Errorf("%s: %q is only allowed in per-test overrides", field, domain.AllConnections)
		}
	}

	for test, tp := range pol.Tests {
		if test == "" {
			return fmt.Errorf("tests contains an empty key")
		}
		if slices.Contains(tp.Force, "") || slices.Contains(tp.Skip, "") {
			return fmt.Errorf("tests[%q] contains an empty connection name", test)
		}
	}
	return nil
}
