package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/config"
	"github.com/yourorg/hubsync/internal/iopkg"
	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/storage"
	tu "github.com/yourorg/hubsync/internal/testutil"
	"github.com/yourorg/hubsync/internal/types"
)

func validConfig(t *testing.T) config.Config {
	return config.Config{
		SourceConnectionString:      "HostName=src.azure-devices.net;SharedAccessKeyName=iothubowner;SharedAccessKey=a2V5MQ==",
		DestinationConnectionString: "HostName=dst.azure-devices.net;SharedAccessKeyName=iothubowner;SharedAccessKey=a2V5Mg==",
		StorageConnectionString:     "AccountName=acct;AccountKey=a2V5MQ==",
		Container:                   "deviceidentities",
		ImportOutputContainer:       "deviceidentities-results",
		SASTTL:                      storage.DefaultTTL,
		JournalDir:                  filepath.Join(t.TempDir(), "journal"),
	}
}

type harness struct {
	cfg    config.Config
	prov   *tu.FakeProvisioner
	source *tu.FakeRegistry
	dest   *tu.FakeRegistry
	sleeps *tu.Sleeps
}

func newHarness(t *testing.T, exportSeq, importSeq []types.JobStatus) *harness {
	h := &harness{
		cfg:  validConfig(t),
		prov: &tu.FakeProvisioner{},
		source: &tu.FakeRegistry{
			NextIDs:  []string{"job-1"},
			Statuses: map[string][]types.JobStatus{"job-1": exportSeq},
			Devices:  []types.DeviceIdentity{{DeviceID: "A"}, {DeviceID: "B"}, {DeviceID: "C"}},
		},
		dest: &tu.FakeRegistry{
			NextIDs:  []string{"job-2"},
			Statuses: map[string][]types.JobStatus{"job-2": importSeq},
			Devices:  []types.DeviceIdentity{{DeviceID: "Z"}},
		},
		sleeps: &tu.Sleeps{},
	}

	oldHub, oldStorage, oldRetry, oldSleep := openHub, openStorage, newRetry, pollSleeper
	t.Cleanup(func() { openHub, openStorage, newRetry, pollSleeper = oldHub, oldStorage, oldRetry, oldSleep })

	openHub = func(cfg config.Config, side types.HubSide, _ *zap.Logger) (hub, error) {
		if _, err := cfg.Registry(side); err != nil {
			return hub{}, err
		}
		reg := h.source
		if side == types.HubDestination {
			reg = h.dest
		}
		return hub{jobs: reg, query: func(q string, n int) orchestrator.DevicePager { return reg.Query(q, n) }}, nil
	}
	openStorage = func(config.Config, *zap.Logger) (storage.Provisioner, error) { return h.prov, nil }
	newRetry = func(log *zap.Logger) *retry.Runner { return retry.NewRunner(retry.None, log) }
	pollSleeper = h.sleeps.Sleep
	return h
}

func (h *harness) execute(ctx context.Context, args ...string) (string, error) {
	opts := &RootOptions{
		loadConfig: func() (config.Config, error) { return h.cfg, nil },
		Log:        zap.NewNop(),
	}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

var (
	running   = types.JobStatusRunning
	completed = types.JobStatusCompleted
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "devsync", cmd.Use)
	for _, name := range []string{"run", "list", "runs", "submit"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRunSucceeds(t *testing.T) {
	h := newHarness(t, []types.JobStatus{running, running, completed}, []types.JobStatus{running, completed})
	out, err := h.execute(context.Background(), "run", "--list-source")
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, GetExitCode(err))
	assert.True(t, strings.HasPrefix(out, "A\nB\nC\n"), out)
	assert.Contains(t, out, "done (succeeded)")
	assert.Contains(t, out, "export job job-1: completed")
	assert.Contains(t, out, "import job job-2: completed")
	require.Len(t, h.dest.Imports, 1)

	out, err = h.execute(context.Background(), "runs", "--format", "json")
	require.NoError(t, err)
	var reps []types.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &reps))
	require.Len(t, reps, 1)
	assert.Equal(t, types.OutcomeSucceeded, reps[0].Outcome)
}

func TestRunExportFailedExitsOne(t *testing.T) {
	h := newHarness(t, []types.JobStatus{running, types.JobStatusFailed}, []types.JobStatus{completed})
	out, err := h.execute(context.Background(), "run")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, orchestrator.ErrJobFailed)
	assert.Contains(t, out, "failed at: exporting")
	assert.Empty(t, h.dest.Imports)
}

func TestRunCancelledExits130(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, []types.JobStatus{running}, nil)
	h.sleeps.CancelAfter = 3
	h.sleeps.Cancel = cancel
	report := filepath.Join(t.TempDir(), "report.json")

	out, err := h.execute(ctx, "run", "--format", "json", "--report", report)
	require.Error(t, err)
	assert.Equal(t, ExitInterrupted, GetExitCode(err))

	var rep types.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, types.OutcomeAbortedByCaller, rep.Outcome)

	saved, err := iopkg.ReadReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, saved.RunID)
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	h := newHarness(t, []types.JobStatus{completed}, []types.JobStatus{completed})
	_, err := h.execute(context.Background(), "run", "--container", "devices-2026", "--import-output-container", "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"devices-2026"}, h.prov.Ensured)
	require.Len(t, h.dest.Imports, 1)
	assert.Equal(t, h.dest.Imports[0].InputURI, h.dest.Imports[0].OutputURI)
}

func TestRunConfigErrorsExitTwo(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.cfg.SourceConnectionString = ""
	_, err := h.execute(context.Background(), "run")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, config.ErrMissing)

	h = newHarness(t, nil, nil)
	_, err = h.execute(context.Background(), "run", "--format", "yaml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestListDestination(t *testing.T) {
	h := newHarness(t, nil, nil)
	out, err := h.execute(context.Background(), "list", "--hub", "destination")
	require.NoError(t, err)
	assert.Equal(t, "Z\n", out)

	_, err = h.execute(context.Background(), "list", "--hub", "sideways")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunsNeedsJournal(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.cfg.JournalDir = ""
	_, err := h.execute(context.Background(), "runs")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(context.Canceled))
	assert.Equal(t, ExitInterrupted, outcomeExit(types.OutcomeAbortedByCaller))
	assert.Equal(t, ExitFailure, outcomeExit(types.OutcomeTransportError))
}
