package storage

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/hubsync/internal/types"
)

// DefaultTTL covers an export and the following import with margin.
const DefaultTTL = time.Hour

// DefaultPermissions is the grant used for the export/import handoff.
const DefaultPermissions = types.PermAll

var (
	// ErrInvalidTTL is returned for a non-positive token lifetime.
	ErrInvalidTTL = errors.New("scoped uri ttl must be positive")
	// ErrNoPermissions is returned when a token would grant nothing.
	ErrNoPermissions = errors.New("scoped uri needs at least one permission")
	// ErrNotScoped is returned when a URI carries no readable access token.
	ErrNotScoped = errors.New("uri has no scoped access token")
)

// ContainerRef identifies a provisioned container.
type ContainerRef struct {
	Name string
	URL  string // container URL without a token
}

// Provisioner prepares the storage location shared by an export and its
// paired import.
type Provisioner interface {
	// EnsureContainer creates the container if missing. An existing
	// container is not an error.
	EnsureContainer(ctx context.Context, name string) (ContainerRef, error)
	// IssueScopedURI mints a token on ref granting perms until now+ttl.
	IssueScopedURI(ref ContainerRef, perms types.Permissions, ttl time.Duration) (types.ScopedLocation, error)
}
