package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/yourorg/hubsync/internal/activities"
	tu "github.com/yourorg/hubsync/internal/testutil"
	"github.com/yourorg/hubsync/internal/types"
)

type fixture struct {
	env    *testsuite.TestWorkflowEnvironment
	prov   *tu.FakeProvisioner
	source *tu.FakeRegistry
	dest   *tu.FakeRegistry
}

func newFixture(t *testing.T, exportSeq, importSeq []types.JobStatus) *fixture {
	var s testsuite.WorkflowTestSuite
	f := &fixture{
		env:  s.NewTestWorkflowEnvironment(),
		prov: &tu.FakeProvisioner{Now: time.Date(2026, 10, 14, 9, 30, 15, 0, time.UTC)},
		source: &tu.FakeRegistry{
			NextIDs:  []string{"job-1"},
			Statuses: map[string][]types.JobStatus{"job-1": exportSeq},
		},
		dest: &tu.FakeRegistry{
			NextIDs:  []string{"job-2"},
			Statuses: map[string][]types.JobStatus{"job-2": importSeq},
		},
	}
	activities.Register(f.env, activities.New(activities.Config{
		Storage:     f.prov,
		Source:      f.source,
		Destination: f.dest,
	}))
	f.env.RegisterWorkflow(SyncWorkflow)
	return f
}

func (f *fixture) run(t *testing.T, p types.SyncParams) types.RunReport {
	t.Helper()
	f.env.ExecuteWorkflow(SyncWorkflow, p)
	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())
	var rep types.RunReport
	require.NoError(t, f.env.GetWorkflowResult(&rep))
	return rep
}

var (
	running   = types.JobStatusRunning
	completed = types.JobStatusCompleted
)

func TestSyncWorkflowDone(t *testing.T) {
	f := newFixture(t, []types.JobStatus{running, running, completed}, []types.JobStatus{running, completed})
	rep := f.run(t, types.SyncParams{
		RunID:                 "run-1",
		Container:             "deviceidentities",
		ImportOutputContainer: "deviceidentities-results",
		TTL:                   time.Hour,
	})

	assert.Equal(t, types.StateDone, rep.State)
	assert.Equal(t, types.OutcomeSucceeded, rep.Outcome)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 3, f.source.GetCount("job-1"))
	assert.Equal(t, 2, f.dest.GetCount("job-2"))
	assert.Equal(t, []string{"deviceidentities", "deviceidentities-results"}, f.prov.Ensured)

	require.Len(t, f.prov.Issued, 2)
	scoped := f.prov.Issued[0].URI
	require.Len(t, f.source.Exports, 1)
	assert.Equal(t, tu.ExportCall{OutputURI: scoped, ExcludeKeys: false}, f.source.Exports[0])
	require.Len(t, f.dest.Imports, 1)
	assert.Equal(t, tu.ImportCall{InputURI: scoped, OutputURI: f.prov.Issued[1].URI}, f.dest.Imports[0])

	assert.GreaterOrEqual(t, rep.Durations[types.StateExporting], 10*time.Second)
	assert.GreaterOrEqual(t, rep.Durations[types.StateImporting], 5*time.Second)
	require.NotNil(t, rep.ExportJob)
	assert.Equal(t, types.JobKindExport, rep.ExportJob.Kind)
}

func TestSyncWorkflowDefaultsReuseContainer(t *testing.T) {
	f := newFixture(t, []types.JobStatus{completed}, []types.JobStatus{completed})
	rep := f.run(t, types.SyncParams{})

	assert.Equal(t, types.StateDone, rep.State)
	assert.Equal(t, []string{"deviceidentities"}, f.prov.Ensured)
	require.Len(t, f.dest.Imports, 1)
	assert.Equal(t, f.dest.Imports[0].InputURI, f.dest.Imports[0].OutputURI)
	assert.NotEmpty(t, rep.RunID)
}

func TestSyncWorkflowExportFailedSkipsImport(t *testing.T) {
	f := newFixture(t, []types.JobStatus{running, types.JobStatusFailed}, []types.JobStatus{completed})
	rep := f.run(t, types.SyncParams{Container: "deviceidentities"})

	assert.Equal(t, types.StateAborted, rep.State)
	assert.Equal(t, types.StateExporting, rep.FailedAt)
	assert.Equal(t, types.OutcomeJobFailed, rep.Outcome)
	assert.Empty(t, f.dest.Imports)
	assert.Nil(t, rep.ImportJob)
}

func TestSyncWorkflowTerminalTransportError(t *testing.T) {
	f := newFixture(t, []types.JobStatus{completed}, []types.JobStatus{completed})
	f.source.CreateErr = errors.New("unauthorized")
	rep := f.run(t, types.SyncParams{Container: "deviceidentities"})

	assert.Equal(t, types.StateAborted, rep.State)
	assert.Equal(t, types.StateExporting, rep.FailedAt)
	assert.Equal(t, types.OutcomeTransportError, rep.Outcome)
	assert.Contains(t, rep.Error, "unauthorized")
}

func TestSyncWorkflowCancelled(t *testing.T) {
	f := newFixture(t, []types.JobStatus{running}, []types.JobStatus{completed})
	f.env.RegisterDelayedCallback(func() { f.env.CancelWorkflow() }, 12*time.Second)
	f.env.ExecuteWorkflow(SyncWorkflow, types.SyncParams{Container: "deviceidentities"})

	require.True(t, f.env.IsWorkflowCompleted())
	err := f.env.GetWorkflowError()
	require.Error(t, err)
	var canceled *temporal.CanceledError
	assert.True(t, errors.As(err, &canceled))
	assert.Empty(t, f.dest.Imports)
}
