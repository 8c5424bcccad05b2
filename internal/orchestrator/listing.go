package orchestrator

import (
	"context"
	"fmt"

	"github.com/yourorg/hubsync/internal/types"
)

// DeviceQuery selects every identity in a registry.
const DeviceQuery = "select * from devices"

// DevicePager yields query results a page at a time.
type DevicePager interface {
	HasMoreResults() bool
	Next(ctx context.Context) ([]types.DeviceIdentity, error)
}

// ListDevices drains pager, calling emit once per device id in page order.
// Ids repeated by the service across pages are skipped.
func ListDevices(ctx context.Context, pager DevicePager, emit func(types.DeviceIdentity) error) (int, error) {
	seen := make(map[string]struct{})
	for pager.HasMoreResults() {
		if err := ctx.Err(); err != nil {
			return len(seen), err
		}
		page, err := pager.Next(ctx)
		if err != nil {
			return len(seen), fmt.Errorf("list devices: %w", err)
		}
		for _, d := range page {
			if _, dup := seen[d.DeviceID]; dup {
				continue
			}
			seen[d.DeviceID] = struct{}{}
			if err := emit(d); err != nil {
				return len(seen), err
			}
		}
	}
	return len(seen), nil
}
