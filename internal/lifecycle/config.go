package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"modelhostd/internal/backend"
	"modelhostd/internal/catalog"
	"modelhostd/internal/telemetry"
)

// defaultOpTimeout bounds a single download or load when the caller's context
// carries no deadline of its own.
const defaultOpTimeout = 10 * time.Minute

// AcceleratorLister reports available accelerator devices, best-effort.
// telemetry.Probe implementations satisfy it.
type AcceleratorLister interface {
	Accelerators(ctx context.Context) []telemetry.Accelerator
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Catalog   *catalog.Catalog
	Backend   backend.Backend
	ModelsDir string
	Probe     AcceleratorLister
	OpTimeout time.Duration
	Logger    zerolog.Logger
}
