package connection_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/guillermoBallester/tablespy/internal/adapter/connection"
	"github.com/guillermoBallester/tablespy/internal/adapter/sqlite"
	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/guillermoBallester/tablespy/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteFile(t *testing.T, schema string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return path
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		configs []port.ConnectionConfig
		wantErr error
	}{
		{
			name:    "missing name",
			configs: []port.ConnectionConfig{{Driver: "postgres"}},
		},
		{
			name:    "reserved name",
			configs: []port.ConnectionConfig{{Name: "*", Driver: "postgres"}},
		},
		{
			name: "duplicate",
			configs: []port.ConnectionConfig{
				{Name: "a", Driver: "postgres"},
				{Name: "a", Driver: "mysql"},
			},
		},
		{
			name:    "empty driver",
			configs: []port.ConnectionConfig{{Name: "a"}},
			wantErr: domain.ErrInvalidDriver,
		},
		{
			name: "invalid mode",
			configs: []port.ConnectionConfig{{Name: "a", Driver: "sqlite",
				Options: map[string]string{domain.OptionCollectorMode: "sometimes"}}},
			wantErr: domain.ErrInvalidMode,
		},
		{
			name: "invalid skip",
			configs: []port.ConnectionConfig{{Name: "a", Driver: "sqlite",
				Options: map[string]string{domain.OptionSkip: "maybe"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := connection.NewRegistry(tt.configs, nil)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_ActiveConnections(t *testing.T) {
	reg, err := connection.NewRegistry([]port.ConnectionConfig{
		{Name: "test", Driver: "pgx"},
		{Name: "legacy", Driver: "mysql", Options: map[string]string{domain.OptionSkip: "true"}},
		{Name: "cache", Driver: "sqlite3", Options: map[string]string{domain.OptionSkip: "false"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache", "legacy", "test"}, reg.Names())
	assert.Equal(t, []string{"cache", "test"}, reg.ActiveConnections())

	cfg, ok := reg.Config("test")
	require.True(t, ok)
	assert.Equal(t, domain.DriverPostgres, cfg.Driver, "driver aliases are normalized")
}

func TestRegistry_UnknownConnection(t *testing.T) {
	reg, err := connection.NewRegistry(nil, nil)
	require.NoError(t, err)

	_, err = reg.Connection(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
}

func TestRegistry_OpensOnceAndSurfacesOpenErrors(t *testing.T) {
	opens := 0
	boom := errors.New("boom")
	reg, err := connection.NewRegistry([]port.ConnectionConfig{
		{Name: "flaky", Driver: "postgres"},
	}, nil, connection.WithOpener(domain.DriverPostgres, func(context.Context, port.ConnectionConfig) (port.Connection, error) {
		opens++
		return nil, boom
	}))
	require.NoError(t, err)

	_, err = reg.Connection(context.Background(), "flaky")
	assert.ErrorIs(t, err, boom)
	_, err = reg.Connection(context.Background(), "flaky")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, opens, "failed opens are not cached")
}

func TestRegistry_SQLite(t *testing.T) {
	ctx := context.Background()
	path := sqliteFile(t, "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)")

	reg, err := connection.NewRegistry([]port.ConnectionConfig{
		{Name: "test", Driver: "sqlite", DSN: path},
		{Name: "gone", Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "gone.db")},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	first, err := reg.Connection(ctx, "test")
	require.NoError(t, err)
	second, err := reg.Connection(ctx, "test")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = reg.Connection(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestRegisterSniffers(t *testing.T) {
	ctx := context.Background()
	path := sqliteFile(t, "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)")

	conns, err := connection.NewRegistry([]port.ConnectionConfig{
		{Name: "test", Driver: "sqlite", DSN: path},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(conns.Close)

	sniffers := service.NewSnifferRegistry(conns, nil)
	connection.RegisterSniffers(sniffers, nil, nil)

	s, err := sniffers.GetTriggerSniffer(ctx, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sniffers.Shutdown(ctx) })

	require.NoError(t, s.Connection().Exec(ctx, "INSERT INTO posts (title) VALUES ('hello')"))

	dirty, err := s.DirtyTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts"}, dirty)
}

func TestRegistry_CustomDriver(t *testing.T) {
	ctx := context.Background()
	path := sqliteFile(t, "CREATE TABLE ledger (id INTEGER PRIMARY KEY, amount INTEGER)")

	// A user dialect: the file is SQLite underneath, but nothing built in
	// knows the "embedded" driver.
	opener := func(ctx context.Context, cfg port.ConnectionConfig) (port.Connection, error) {
		cfg.DSN = path
		return sqlite.Open(ctx, cfg)
	}

	conns, err := connection.NewRegistry([]port.ConnectionConfig{
		{Name: "books", Driver: "Embedded", Options: map[string]string{domain.OptionSniffer: "embedded_triggers"}},
		{Name: "orphan", Driver: "embedded"},
		{Name: "ora", Driver: "oracle"},
	}, nil, connection.WithOpener("embedded", opener))
	require.NoError(t, err)
	t.Cleanup(conns.Close)

	cfg, ok := conns.Config("books")
	require.True(t, ok)
	assert.Equal(t, domain.Driver("embedded"), cfg.Driver)

	sniffers := service.NewSnifferRegistry(conns, nil)
	connection.RegisterSniffers(sniffers, nil, nil)
	sniffers.Register("embedded_triggers", connection.SnifferFactory(sqlite.NewDialect(), nil, nil))
	t.Cleanup(func() { _ = sniffers.Shutdown(ctx) })

	t.Run("opener and sniffer option", func(t *testing.T) {
		s, err := sniffers.GetTriggerSniffer(ctx, "books")
		require.NoError(t, err)

		require.NoError(t, s.Connection().Exec(ctx, "INSERT INTO ledger (amount) VALUES (10)"))
		dirty, err := s.DirtyTables(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ledger"}, dirty)
	})

	t.Run("opener without sniffer", func(t *testing.T) {
		_, err := sniffers.Get(ctx, "orphan")
		assert.ErrorIs(t, err, domain.ErrUnsupportedDriver)
	})

	t.Run("no opener", func(t *testing.T) {
		_, err := sniffers.Get(ctx, "ora")
		assert.ErrorIs(t, err, domain.ErrUnsupportedDriver)
	})
}
