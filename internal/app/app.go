// Package app builds the production clients from Config.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/config"
	znmetrics "github.com/yourorg/hubsync/internal/metrics"
	"github.com/yourorg/hubsync/internal/registry"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// Registry opens the registry client for side.
func Registry(cfg config.Config, side types.HubSide, log *zap.Logger) (*registry.Client, error) {
	cs, err := cfg.Registry(side)
	if err != nil {
		return nil, err
	}
	return registry.New(cs, registry.WithLogger(log.With(zap.String("hub", string(side))))), nil
}

// Storage opens the blob provisioner.
func Storage(cfg config.Config, log *zap.Logger) (*storage.BlobProvisioner, error) {
	st, err := cfg.Storage()
	if err != nil {
		return nil, err
	}
	p, err := storage.NewBlobProvisioner(st, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return p, nil
}

// Retry returns the default policy runner, counting retries per operation.
func Retry(log *zap.Logger) *retry.Runner {
	r := retry.NewRunner(retry.Default, log)
	r.OnRetry = func(op string) { znmetrics.Retries.WithLabelValues(op).Inc() }
	return r
}
