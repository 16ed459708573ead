package service

import (
	"context"
	"errors"
	"testing"

	"github.com/guillermoBallester/tablespy/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type truncationFixture struct {
	dbs     map[string]*fakeDB
	store   *memStore
	auditor *recordingAuditor
	inst    *countingInst
	reg     *SnifferRegistry
	conns   *fakeConnRegistry
	svc     *TruncationService
}

func newTruncationFixture(t *testing.T, names ...string) *truncationFixture {
	t.Helper()
	f := &truncationFixture{
		dbs:     map[string]*fakeDB{},
		store:   &memStore{},
		auditor: &recordingAuditor{},
		inst:    &countingInst{},
	}
	var conns []*fakeConn
	for _, name := range names {
		db := newFakeDB("countries", "cities")
		f.dbs[name] = db
		conns = append(conns, namedConn(name, domain.DriverSQLite, db, nil))
	}
	f.conns = newFakeConnRegistry(conns...)
	f.reg = NewSnifferRegistry(f.conns, testLogger())
	f.reg.RegisterDefault(domain.DriverSQLite, "sqlite", fakeFactory(nil))
	f.svc = NewTruncationService(f.reg, f.conns, f.store, f.auditor, testLogger(), nil, f.inst)
	return f
}

// dirty builds every sniffer and inserts one row in countries on each connection.
func (f *truncationFixture) dirty(t *testing.T) {
	t.Helper()
	for name, db := range f.dbs {
		_, err := f.reg.Get(context.Background(), name)
		require.NoError(t, err)
		db.insert("countries")
	}
}

func TestTruncationService_TruncatesActiveConnections(t *testing.T) {
	f := newTruncationFixture(t, "test", "cloud1", "cloud2")
	f.dirty(t)

	report, err := f.svc.Truncate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Disabled)
	assert.Equal(t, []string{"test", "cloud1", "cloud2"}, report.Names())
	for _, c := range report.Connections {
		assert.Equal(t, []string{"countries"}, c.Tables)
	}
	for _, db := range f.dbs {
		assert.Equal(t, 0, db.tables["countries"])
	}

	require.Len(t, f.auditor.entries, 3)
	runID := f.auditor.entries[0].RunID
	assert.NotEmpty(t, runID)
	for _, e := range f.auditor.entries {
		assert.Equal(t, runID, e.RunID, "one run id per call")
	}
	assert.Equal(t, 3, f.inst.truncations)
	assert.Equal(t, 3, f.inst.tables)
}

func TestTruncationService_DisabledMakesNoDatabaseCall(t *testing.T) {
	f := newTruncationFixture(t, "test")
	f.store.policy = domain.TruncationPolicy{Disabled: true}

	report, err := f.svc.Truncate(context.Background(), "test")
	require.NoError(t, err)
	assert.True(t, report.Disabled)
	assert.Empty(t, report.Connections)
	assert.Empty(t, f.reg.Loaded(), "no sniffer may be built")
	assert.Zero(t, f.dbs["test"].collectorsBuilt)
}

func TestTruncationService_SkipAllWithForced(t *testing.T) {
	f := newTruncationFixture(t, "test", "cloud1", "cloud2")
	f.dirty(t)
	f.store.policy = domain.TruncationPolicy{SkipAll: true, Forced: []string{"test"}}

	report, err := f.svc.Truncate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, report.Names())
	assert.Equal(t, 1, f.dbs["cloud1"].tables["countries"])
}

func TestTruncationService_ManualWins(t *testing.T) {
	f := newTruncationFixture(t, "test", "cloud1")
	f.dirty(t)
	f.store.policy = domain.TruncationPolicy{SkipAll: true}

	report, err := f.svc.Truncate(context.Background(), "cloud1")
	require.NoError(t, err)
	assert.True(t, report.Manual)
	assert.Equal(t, []string{"cloud1"}, report.Names())
	assert.True(t, f.auditor.entries[0].Manual)
}

func TestTruncationService_ManualWildcard(t *testing.T) {
	f := newTruncationFixture(t, "test", "cloud1")
	f.dirty(t)
	f.store.policy = domain.TruncationPolicy{Skipped: []string{"cloud1"}}

	report, err := f.svc.Truncate(context.Background(), "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "cloud1"}, report.Names())
}

func TestTruncationService_UnknownManualConnection(t *testing.T) {
	f := newTruncationFixture(t, "test")

	_, err := f.svc.Truncate(context.Background(), "wrong")
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
}

func TestTruncationService_ContinuesAfterFailure(t *testing.T) {
	f := newTruncationFixture(t, "broken", "test")
	f.dirty(t)
	f.dbs["broken"].failDirtyRead = errors.New("connection reset")

	report, err := f.svc.Truncate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"test"}, report.Names())
	assert.Equal(t, 1, f.inst.errors)
	require.Len(t, f.auditor.entries, 2)
	assert.Error(t, f.auditor.entries[0].Err)
}

func TestTruncationService_PolicyReadError(t *testing.T) {
	f := newTruncationFixture(t, "test")
	f.store.err = errors.New("bad env value")

	_, err := f.svc.Truncate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad env value")
}
