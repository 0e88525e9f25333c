package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peerdb/internal/registry"
	"github.com/roach88/peerdb/internal/sqlerr"
	"github.com/roach88/peerdb/internal/testutil"
)

func countAuthors(t *testing.T, reg *registry.Registry) int {
	t.Helper()
	var n int
	require.NoError(t, reg.Database("").DB.QueryRow("SELECT COUNT(*) FROM author").Scan(&n))
	return n
}

func TestCommit_PersistsAndReleases(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m := NewDefaultManager(reg)

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	assert.True(t, h.Transactional())
	assert.Equal(t, StateOpen, h.State())
	assert.NotEmpty(t, h.ID())

	_, err = h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, h))

	assert.True(t, h.Committed())
	assert.True(t, h.Closed())
	assert.Equal(t, StateCommitted, h.State())
	assert.Equal(t, 1, countAuthors(t, reg))
}

func TestRollback_Discards(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m := NewDefaultManager(reg)

	h, err := m.Begin(ctx, testutil.DBName)
	require.NoError(t, err)
	_, err = h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
	require.NoError(t, err)
	require.NoError(t, m.Rollback(ctx, h))

	assert.Equal(t, StateRolledBack, h.State())
	assert.True(t, h.Closed())
	assert.Equal(t, 0, countAuthors(t, reg))
}

func TestCommitAfterRollback_IsContractViolation(t *testing.T) {
	ctx := context.Background()
	m := NewDefaultManager(testutil.Bookstore(t, ""))

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Rollback(ctx, h))

	err = m.Commit(ctx, h)
	require.Error(t, err)
	assert.True(t, sqlerr.IsContract(err))
	assert.True(t, errors.Is(err, sqlerr.ErrContract))
	assert.False(t, h.Committed())
}

func TestCommitTwice_IsContractViolation(t *testing.T) {
	ctx := context.Background()
	m := NewDefaultManager(testutil.Bookstore(t, ""))

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, h))
	assert.True(t, sqlerr.IsContract(m.Commit(ctx, h)))
}

func TestRollback_ClosedHandleIsNoop(t *testing.T) {
	ctx := context.Background()
	m := NewDefaultManager(testutil.Bookstore(t, ""))

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, h))

	assert.NoError(t, m.Rollback(ctx, h))
	assert.Equal(t, StateCommitted, h.State())
}

func TestClose_RollsBackUncommitted(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m := NewDefaultManager(reg)

	func() {
		h, err := m.Begin(ctx, "")
		require.NoError(t, err)
		defer m.Close(h)
		_, err = h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
		require.NoError(t, err)
	}()

	assert.Equal(t, 0, countAuthors(t, reg))
}

func TestClose_AfterCommitKeepsData(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m := NewDefaultManager(reg)

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	_, err = h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, h))
	m.Close(h)
	m.Close(nil)

	assert.Equal(t, 1, countAuthors(t, reg))
}

func TestSafeRollback_NilHandle(t *testing.T) {
	m := NewDefaultManager(testutil.Bookstore(t, ""))
	assert.NotPanics(t, func() { m.SafeRollback(context.Background(), nil) })
}

func TestAutocommitManager_NoTransaction(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m, err := NewManager("autocommit", reg)
	require.NoError(t, err)

	h, err := m.Begin(ctx, "")
	require.NoError(t, err)
	assert.False(t, h.Transactional())

	_, err = h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
	require.NoError(t, err)
	require.NoError(t, m.Rollback(ctx, h))

	// statements already committed on their own
	assert.Equal(t, 1, countAuthors(t, reg))
}

func TestAutocommitDatabase_NoTransaction(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	reg.Database("").Autocommit = true

	h, err := NewDefaultManager(reg).Begin(ctx, "")
	require.NoError(t, err)
	defer NewDefaultManager(reg).Close(h)
	assert.False(t, h.Transactional())
}

func TestBegin_UnknownDatabase(t *testing.T) {
	m := NewDefaultManager(testutil.Bookstore(t, ""))
	_, err := m.Begin(context.Background(), "missing")
	assert.True(t, sqlerr.IsConfiguration(err))
}

func TestNewManager(t *testing.T) {
	reg := registry.New("main")

	m, err := NewManager("", reg)
	require.NoError(t, err)
	assert.IsType(t, &DefaultManager{}, m)

	_, err = NewManager("jta", reg)
	assert.True(t, sqlerr.IsConfiguration(err))

	assert.Equal(t, []string{"autocommit", "default"}, ManagerNames())
	assert.Panics(t, func() { RegisterManager("default", nil) })
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	reg := testutil.Bookstore(t, "")
	m := NewDefaultManager(reg)

	err := Run(ctx, m, "", func(h *Handle) error {
		_, err := h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Pike")
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Run(ctx, m, "", func(h *Handle) error {
		if _, err := h.ExecContext(ctx, "INSERT INTO author (name) VALUES (?)", "Kernighan"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countAuthors(t, reg))
}
