package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/hubsync/internal/types"
)

const (
	srcCS = "HostName=src.azure-devices.net;SharedAccessKeyName=iothubowner;SharedAccessKey=a2V5MQ=="
	dstCS = "HostName=dst.azure-devices.net;SharedAccessKeyName=iothubowner;SharedAccessKey=a2V5Mg=="
	stCS  = "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=a2V5MQ==;EndpointSuffix=core.windows.net"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "deviceidentities", cfg.Container)
	assert.Equal(t, "deviceidentities-results", cfg.ImportOutputContainer)
	assert.Equal(t, time.Hour, cfg.SASTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "hubsync", cfg.TemporalTaskQueue)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HUBSYNC_SOURCE_CONNECTION_STRING", srcCS)
	t.Setenv("HUBSYNC_DESTINATION_CONNECTION_STRING", dstCS)
	t.Setenv("HUBSYNC_STORAGE_CONNECTION_STRING", stCS)
	t.Setenv("HUBSYNC_SAS_TTL", "90m")
	t.Setenv("HUBSYNC_IMPORT_OUTPUT_CONTAINER", ReuseInputContainer)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 90*time.Minute, cfg.SASTTL)
	assert.Empty(t, cfg.OutputContainer())

	oc := cfg.Orchestrator()
	assert.Equal(t, "deviceidentities", oc.Container)
	assert.Empty(t, oc.ImportOutputContainer)
	assert.Equal(t, types.PermAll, oc.Permissions)

	src, err := cfg.Registry(types.HubSource)
	require.NoError(t, err)
	assert.Equal(t, "src.azure-devices.net", src.HostName)

	p := cfg.SyncParams("run-7")
	assert.Equal(t, "run-7", p.RunID)
	assert.Equal(t, 90*time.Minute, p.TTL)
}

func TestLoadBadDuration(t *testing.T) {
	t.Setenv("HUBSYNC_SAS_TTL", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Config{Container: "Bad_Name", ImportOutputContainer: "deviceidentities-results"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissing)
	for _, want := range []string{
		"HUBSYNC_SOURCE_CONNECTION_STRING",
		"HUBSYNC_DESTINATION_CONNECTION_STRING",
		"HUBSYNC_STORAGE_CONNECTION_STRING",
		"HUBSYNC_CONTAINER",
		"HUBSYNC_SAS_TTL",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRegistryMalformed(t *testing.T) {
	cfg := Config{SourceConnectionString: "HostName=src.azure-devices.net"}
	_, err := cfg.Registry(types.HubSource)
	require.Error(t, err)
	_, err = cfg.Registry("sideways")
	require.Error(t, err)
}
