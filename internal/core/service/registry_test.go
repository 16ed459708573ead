package service

import (
	"context"
	"testing"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/guillermoBallester/tablespy/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnifferRegistry_GetCachesPerConnection(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB("countries")
	conns := newFakeConnRegistry(namedConn("test", domain.DriverSQLite, db, nil))

	reg := NewSnifferRegistry(conns, testLogger())
	reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))

	first, err := reg.Get(ctx, "test")
	require.NoError(t, err)
	second, err := reg.Get(ctx, "test")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, db.collectorsBuilt, "construction starts the sniffer once")
	assert.Equal(t, []string{"test"}, reg.Loaded())
}

func TestSnifferRegistry_UnsupportedDriver(t *testing.T) {
	conns := newFakeConnRegistry(namedConn("test", domain.DriverMySQL, newFakeDB(), nil))
	reg := NewSnifferRegistry(conns, testLogger())
	reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))

	_, err := reg.Get(context.Background(), "test")
	assert.ErrorIs(t, err, domain.ErrUnsupportedDriver)
}

func TestSnifferRegistry_SnifferOptionOverridesDriver(t *testing.T) {
	db := newFakeDB("countries")
	conns := newFakeConnRegistry(namedConn("test", domain.Driver("oracle"), db, map[string]string{domain.OptionSniffer: "custom"}))
	reg := NewSnifferRegistry(conns, testLogger())

	var used bool
	reg.Register("custom", func(ctx context.Context, conn port.Connection) (port.Sniffer, error) {
		used = true
		return fakeFactory(nil)(ctx, conn)
	})

	_, err := reg.Get(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestSnifferRegistry_UnknownConnection(t *testing.T) {
	reg := NewSnifferRegistry(newFakeConnRegistry(), testLogger())
	_, err := reg.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
}

func TestSnifferRegistry_ForgetRebuilds(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB("countries")
	reg := NewSnifferRegistry(newFakeConnRegistry(namedConn("test", domain.DriverSQLite, db, nil)), testLogger())
	reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))

	first, err := reg.Get(ctx, "test")
	require.NoError(t, err)
	reg.Forget("test")
	second, err := reg.Get(ctx, "test")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, db.collectorsBuilt)
}

func TestSnifferRegistry_Shutdown(t *testing.T) {
	ctx := context.Background()
	dbA, dbB := newFakeDB("a"), newFakeDB("b")
	reg := NewSnifferRegistry(newFakeConnRegistry(
		namedConn("one", domain.DriverSQLite, dbA, nil),
		namedConn("two", domain.DriverSQLite, dbB, nil),
	), testLogger())
	reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))

	for _, name := range []string{"one", "two"} {
		_, err := reg.Get(ctx, name)
		require.NoError(t, err)
	}

	require.NoError(t, reg.Shutdown(ctx))
	assert.False(t, dbA.collector)
	assert.False(t, dbB.collector)
	assert.Empty(t, reg.Loaded())
}

func TestSnifferRegistry_GetTriggerSniffer(t *testing.T) {
	db := newFakeDB("countries")
	reg := NewSnifferRegistry(newFakeConnRegistry(namedConn("test", domain.DriverSQLite, db, nil)), testLogger())
	reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))

	ts, err := reg.GetTriggerSniffer(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, domain.ModePerm, ts.Mode())
}
