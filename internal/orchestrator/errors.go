package orchestrator

import "errors"

var (
	// ErrJobFailed is returned when an export or import job ends failed or
	// cancelled on the service.
	ErrJobFailed = errors.New("bulk job did not complete")
	// ErrPreflight is returned when an issued scoped URI does not carry the
	// requested grant.
	ErrPreflight = errors.New("scoped uri pre-flight check failed")
	// ErrInvalidConfig is returned by New for an unusable Config.
	ErrInvalidConfig = errors.New("invalid orchestrator config")
)
