package journal

import "errors"

// ErrNotFound is returned when no run with the given id was recorded.
var ErrNotFound = errors.New("run not found")

// ErrNoRunID is returned when recording a report without a run id.
var ErrNoRunID = errors.New("report has no run id")
