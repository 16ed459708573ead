package domain

import (
	"fmt"
	"strings"
)

// CollectorMode defines the lifecycle of the dirty table collector.
type CollectorMode string

const (
	// ModeTemp scopes the collector to the current database session.
	ModeTemp CollectorMode = "TEMP"
	// ModePerm makes the collector an ordinary table that survives reconnects.
	ModePerm CollectorMode = "PERM"
)

// DefaultMode is used when a connection does not configure collector_mode.
const DefaultMode = ModePerm

// ParseMode accepts temp/temporary and perm/permanent/main, case-insensitively.
// An empty string yields DefaultMode.
func ParseMode(s string) (CollectorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultMode, nil
	case "temp", "temporary":
		return ModeTemp, nil
	case "perm", "permanent", "main":
		return ModePerm, nil
	default:
		return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidMode, s, "temp", "perm")
	}
}

func (m CollectorMode) IsTemp() bool { return m == ModeTemp }

func (m CollectorMode) String() string { return string(m) }
