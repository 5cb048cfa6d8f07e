// Package backend implements the model backend consumed by the lifecycle
// manager: fetching artifact sets into resource-scoped directories and
// materializing them into serve-capable handles.
package backend

import (
	"context"
	"errors"

	"modelhostd/internal/catalog"
)

// Handle is an opaque reference to a materialized resource. It is owned by
// the lifecycle manager for its loaded lifetime; Close must be safe to call
// exactly once per successful Materialize.
type Handle interface {
	Close() error
}

// ErrExhausted signals that the backend could not materialize a resource
// because of insufficient memory or device capacity. Wrap with %w.
var ErrExhausted = errors.New("insufficient capacity")

// Backend fetches and materializes heavyweight resources.
//
// Fetch must leave dest either absent or complete, never partially
// populated. Materialize returns a handle plus the measured memory
// footprint in MB. Release frees a handle obtained from Materialize.
type Backend interface {
	Fetch(ctx context.Context, repo, dest string) error
	Materialize(ctx context.Context, path, device string, quant catalog.Quant) (Handle, int, error)
	Release(h Handle) error
}
