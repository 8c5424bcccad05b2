package types

import (
	"encoding/json"
	"strings"
	"time"
)

// JobKind is the kind of registry bulk job.
type JobKind string

const (
	JobKindExport JobKind = "export"
	JobKindImport JobKind = "import"
)

// JobStatus is the normalized status of a registry bulk job.
type JobStatus string

const (
	JobStatusUnknown   JobStatus = "unknown"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ParseJobStatus maps a status string reported by the registry service onto
// the normalized set. Queued-like states count as running.
func ParseJobStatus(s string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "enqueued", "queued", "scheduled":
		return JobStatusRunning
	case "completed":
		return JobStatusCompleted
	case "failed":
		return JobStatusFailed
	case "cancelled", "canceled":
		return JobStatusCancelled
	default:
		return JobStatusUnknown
	}
}

// Terminal reports whether no further transition can occur from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a snapshot of a registry bulk job. It is owned by the registry
// service; callers only read it.
type Job struct {
	ID            string    `json:"id"`
	Kind          JobKind   `json:"kind"`
	Status        JobStatus `json:"status"`
	RawStatus     string    `json:"raw_status,omitempty"` // as reported by the service
	Progress      int       `json:"progress"`             // 0-100
	InputURI      string    `json:"input_uri,omitempty"`
	OutputURI     string    `json:"output_uri,omitempty"`
	ExcludeKeys   bool      `json:"exclude_keys"`
	FailureReason string    `json:"failure_reason,omitempty"`
	StartTime     time.Time `json:"start_time,omitempty"`
	EndTime       time.Time `json:"end_time,omitempty"`
}

// DeviceIdentity is a registry record. Properties holds the twin document
// untouched.
type DeviceIdentity struct {
	DeviceID   string          `json:"deviceId"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// ScopedLocation is a storage container plus a time-boxed access token.
type ScopedLocation struct {
	Container   string      `json:"container"`
	BaseURI     string      `json:"base_uri"`
	Permissions Permissions `json:"permissions"`
	Expiry      time.Time   `json:"expiry"`
	// URI is BaseURI with the token appended. Never log or persist it.
	URI string `json:"-"`
}

// RunState is a state of the sync state machine.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateProvisioning RunState = "provisioning"
	StateExporting    RunState = "exporting"
	StateImporting    RunState = "importing"
	StateDone         RunState = "done"
	StateAborted      RunState = "aborted"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSucceeded       Outcome = "succeeded"
	OutcomeJobFailed       Outcome = "job_failed"
	OutcomeTransportError  Outcome = "transport_error"
	OutcomeAbortedByCaller Outcome = "aborted_by_caller"
)

// RunReport is returned by every sync run, successful or not.
type RunReport struct {
	RunID    string   `json:"run_id"`
	State    RunState `json:"state"`
	FailedAt RunState `json:"failed_at,omitempty"` // state that was active when the run aborted
	Outcome  Outcome  `json:"outcome"`
	Error    string   `json:"error,omitempty"`

	Location       *ScopedLocation `json:"location,omitempty"`
	OutputLocation *ScopedLocation `json:"output_location,omitempty"` // import log; nil when Location is reused
	ExportJob      *Job            `json:"export_job,omitempty"`
	ImportJob      *Job            `json:"import_job,omitempty"`

	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Durations  map[RunState]time.Duration `json:"durations,omitempty"`
}

// SyncParams is the input of a sync run hosted as a workflow.
type SyncParams struct {
	RunID                 string        `json:"run_id"`
	Container             string        `json:"container"`
	ImportOutputContainer string        `json:"import_output_container"` // empty reuses Container
	TTL                   time.Duration `json:"ttl"`
}

// ProvisionParams asks for a container and a scoped URI on it.
type ProvisionParams struct {
	Container   string        `json:"container"`
	Permissions Permissions   `json:"permissions"`
	TTL         time.Duration `json:"ttl"`
}

// ProvisionResult carries the issued location. URI is exported here because
// activity results cross a serialization boundary.
type ProvisionResult struct {
	Location ScopedLocation `json:"location"`
	URI      string         `json:"uri"`
}

// ExportParams starts an export job on the source registry.
type ExportParams struct {
	OutputURI   string `json:"output_uri"`
	ExcludeKeys bool   `json:"exclude_keys"`
}

// ImportParams starts an import job on the destination registry.
type ImportParams struct {
	InputURI  string `json:"input_uri"`
	OutputURI string `json:"output_uri"`
}

// HubSide selects the registry a job activity talks to.
type HubSide string

const (
	HubSource      HubSide = "source"
	HubDestination HubSide = "destination"
)

// GetJobParams fetches one job snapshot.
type GetJobParams struct {
	Hub   HubSide `json:"hub"`
	JobID string  `json:"job_id"`
}
