package connection

import (
	"context"
	"log/slog"

	"github.com/guillermoBallester/tablespy/internal/adapter/mysql"
	"github.com/guillermoBallester/tablespy/internal/adapter/postgres"
	"github.com/guillermoBallester/tablespy/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/core/service"
)

// Dialects maps every built-in driver to its dialect.
var Dialects = map[domain.Driver]port.Dialect{
	domain.DriverPostgres: postgres.NewDialect(),
	domain.DriverMySQL:    mysql.NewDialect(),
	domain.DriverSQLite:   sqlite.NewDialect(),
}

// RegisterSniffers makes the trigger based sniffer of each built-in dialect
// the default for its driver, registered under the driver name.
func RegisterSniffers(reg *service.SnifferRegistry, logger *slog.Logger, inst port.Instrumentation) {
	for driver, dialect := range Dialects {
		reg.RegisterDefault(driver, driver.String(), SnifferFactory(dialect, logger, inst))
	}
}

// SnifferFactory builds started trigger based sniffers on dialect.
func SnifferFactory(dialect port.Dialect, logger *slog.Logger, inst port.Instrumentation) port.SnifferFactory {
	return func(ctx context.Context, conn port.Connection) (port.Sniffer, error) {
		return service.StartSniffer(ctx, conn, dialect, logger, inst)
	}
}
