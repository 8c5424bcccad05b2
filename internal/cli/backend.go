package cli

import (
	"go.uber.org/zap"

	"github.com/yourorg/hubsync/internal/app"
	"github.com/yourorg/hubsync/internal/bulkjob"
	"github.com/yourorg/hubsync/internal/config"
	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/retry"
	"github.com/yourorg/hubsync/internal/storage"
	"github.com/yourorg/hubsync/internal/types"
)

// hub is one registry as the commands see it.
type hub struct {
	jobs  bulkjob.Registry
	query func(q string, pageSize int) orchestrator.DevicePager
}

// The following hooks are replaced in tests.
var (
	openHub = func(cfg config.Config, side types.HubSide, log *zap.Logger) (hub, error) {
		c, err := app.Registry(cfg, side, log)
		if err != nil {
			return hub{}, err
		}
		return hub{
			jobs:  c,
			query: func(q string, n int) orchestrator.DevicePager { return c.Query(q, n) },
		}, nil
	}

	openStorage = func(cfg config.Config, log *zap.Logger) (storage.Provisioner, error) {
		p, err := app.Storage(cfg, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	newRetry = app.Retry

	pollSleeper retry.Sleeper = retry.Sleep
)
