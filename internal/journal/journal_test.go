package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hubsync/internal/types"
)

var t0 = time.Date(2026, 10, 14, 9, 30, 15, 0, time.UTC)

func report(id string, offset time.Duration, outcome types.Outcome) types.RunReport {
	return types.RunReport{
		RunID:      id,
		State:      types.StateDone,
		Outcome:    outcome,
		StartedAt:  t0.Add(offset),
		FinishedAt: t0.Add(offset + time.Minute),
	}
}

func openMem(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestListNewestFirst(t *testing.T) {
	j := openMem(t)
	require.NoError(t, j.Record(report("b", time.Hour, types.OutcomeSucceeded)))
	require.NoError(t, j.Record(report("a", 0, types.OutcomeSucceeded)))
	require.NoError(t, j.Record(report("c", 2*time.Hour, types.OutcomeJobFailed)))

	all, err := j.List(0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.RunID
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	two, err := j.List(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "c", two[0].RunID)
	assert.Equal(t, types.OutcomeJobFailed, two[0].Outcome)
}

func TestRecordReplacesSameRun(t *testing.T) {
	j := openMem(t)
	first := report("a", 0, types.OutcomeSucceeded)
	first.State = types.StateExporting
	require.NoError(t, j.Record(first))
	require.NoError(t, j.Record(report("a", 0, types.OutcomeSucceeded)))

	all, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.StateDone, all[0].State)

	got, err := j.Get("a")
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(t0))
}

func TestGetMissingAndInvalid(t *testing.T) {
	j := openMem(t)
	_, err := j.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, j.Record(types.RunReport{}), ErrNoRunID)
}

func TestPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(report("a", 0, types.OutcomeAbortedByCaller)))
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Get("a")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeAbortedByCaller, got.Outcome)
}
