package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobStatus(t *testing.T) {
	cases := map[string]JobStatus{
		"running":   JobStatusRunning,
		"enqueued":  JobStatusRunning,
		"queued":    JobStatusRunning,
		"scheduled": JobStatusRunning,
		"Completed": JobStatusCompleted,
		"failed":    JobStatusFailed,
		"cancelled": JobStatusCancelled,
		"unknown":   JobStatusUnknown,
		"":          JobStatusUnknown,
		"weird":     JobStatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseJobStatus(in), "ParseJobStatus(%q)", in)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.False(t, JobStatusUnknown.Terminal())
}

func TestPermissions(t *testing.T) {
	assert.Equal(t, "rwd", PermAll.String())
	assert.Equal(t, "rd", (PermDelete | PermRead).String())

	p, err := ParsePermissions("dwr")
	require.NoError(t, err)
	assert.Equal(t, PermAll, p)
	assert.True(t, p.Has(PermRead|PermWrite))

	_, err = ParsePermissions("rwl")
	assert.Error(t, err)

	b, err := json.Marshal(PermRead | PermWrite)
	require.NoError(t, err)
	assert.JSONEq(t, `"rw"`, string(b))

	var back Permissions
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, PermRead|PermWrite, back)
}
