package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Driver identifies a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Drivers lists the built-in dialects.
var Drivers = []Driver{DriverPostgres, DriverMySQL, DriverSQLite}

// ParseDriver maps a configured driver name to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("%w %q: must be postgres, mysql or sqlite", ErrInvalidDriver, s)
	}
}

// NormalizeDriver maps the aliases of the built-in drivers like ParseDriver
// and passes any other name through lowercased, so a user dialect can be
// configured. Whether a connection of that driver can be opened and sniffed
// is decided by the registries. Only an empty name is rejected.
func NormalizeDriver(s string) (Driver, error) {
	if d, err := ParseDriver(s); err == nil {
		return d, nil
	}
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("%w: driver is empty", ErrInvalidDriver)
	}
	return Driver(name), nil
}

// IsBuiltin reports whether d is one of the built-in dialects.
func (d Driver) IsBuiltin() bool {
	return slices.Contains(Drivers, d)
}

func (d Driver) String() string { return string(d) }
