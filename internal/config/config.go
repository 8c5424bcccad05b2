// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yourorg/hubsync/internal/connstr"
	"github.com/yourorg/hubsync/internal/normalize"
	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// ReuseInputContainer as the import output container writes the import log
// next to the exported identities.
const ReuseInputContainer = "-"

// ErrMissing is returned when a required setting is empty.
var ErrMissing = errors.New("missing required setting")

type Config struct {
	SourceConnectionString      string `env:"HUBSYNC_SOURCE_CONNECTION_STRING"`
	DestinationConnectionString string `env:"HUBSYNC_DESTINATION_CONNECTION_STRING"`
	StorageConnectionString     string `env:"HUBSYNC_STORAGE_CONNECTION_STRING"`

	Container             string        `env:"HUBSYNC_CONTAINER"               envDefault:"deviceidentities"`
	ImportOutputContainer string        `env:"HUBSYNC_IMPORT_OUTPUT_CONTAINER" envDefault:"deviceidentities-results"`
	SASTTL                time.Duration `env:"HUBSYNC_SAS_TTL"                 envDefault:"1h"`

	JournalDir string `env:"HUBSYNC_JOURNAL_DIR"`
	ReportURI  string `env:"HUBSYNC_REPORT_URI"`

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	TemporalAddress   string `env:"TEMPORAL_ADDRESS"    envDefault:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE"  envDefault:"default"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"hubsync"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// OutputContainer returns the import output container, or "" when the input
// container is reused.
func (c Config) OutputContainer() string {
	if c.ImportOutputContainer == ReuseInputContainer {
		return ""
	}
	return c.ImportOutputContainer
}

// Orchestrator returns the sync run configuration.
func (c Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		Container:             c.Container,
		ImportOutputContainer: c.OutputContainer(),
		TTL:                   c.SASTTL,
		Permissions:           storage.DefaultPermissions,
	}
}

// SyncParams returns the workflow input for runID.
func (c Config) SyncParams(runID string) types.SyncParams {
	return types.SyncParams{
		RunID:                 runID,
		Container:             c.Container,
		ImportOutputContainer: c.OutputContainer(),
		TTL:                   c.SASTTL,
	}
}

// Registry parses the connection string of one side.
func (c Config) Registry(side types.HubSide) (connstr.Registry, error) {
	var s, name string
	switch side {
	case types.HubSource:
		s, name = c.SourceConnectionString, "HUBSYNC_SOURCE_CONNECTION_STRING"
	case types.HubDestination:
		s, name = c.DestinationConnectionString, "HUBSYNC_DESTINATION_CONNECTION_STRING"
	default:
		return connstr.Registry{}, fmt.Errorf("unknown hub %q", side)
	}
	if s == "" {
		return connstr.Registry{}, fmt.Errorf("%w: %s", ErrMissing, name)
	}
	r, err := connstr.ParseRegistry(s)
	if err != nil {
		return connstr.Registry{}, fmt.Errorf("%s: %w", name, err)
	}
	return r, nil
}

// Storage parses the storage connection string.
func (c Config) Storage() (connstr.Storage, error) {
	if c.StorageConnectionString == "" {
		return connstr.Storage{}, fmt.Errorf("%w: HUBSYNC_STORAGE_CONNECTION_STRING", ErrMissing)
	}
	s, err := connstr.ParseStorage(c.StorageConnectionString)
	if err != nil {
		return connstr.Storage{}, fmt.Errorf("HUBSYNC_STORAGE_CONNECTION_STRING: %w", err)
	}
	return s, nil
}

// Validate checks everything a sync run needs.
func (c Config) Validate() error {
	var errs []error
	for _, side := range []types.HubSide{types.HubSource, types.HubDestination} {
		if _, err := c.Registry(side); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Storage(); err != nil {
		errs = append(errs, err)
	}
	if err := normalize.ContainerName(c.Container); err != nil {
		errs = append(errs, fmt.Errorf("HUBSYNC_CONTAINER: %w", err))
	}
	if oc := c.OutputContainer(); oc != "" {
		if err := normalize.ContainerName(oc); err != nil {
			errs = append(errs, fmt.Errorf("HUBSYNC_IMPORT_OUTPUT_CONTAINER: %w", err))
		}
	}
	if c.SASTTL <= 0 {
		errs = append(errs, fmt.Errorf("HUBSYNC_SAS_TTL must be positive, got %s", c.SASTTL))
	}
	return errors.Join(errs...)
}
