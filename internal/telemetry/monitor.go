package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the sampling cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Monitor runs the background sampling loop: one sample per tick
// appended to the store until the context is canceled.
type Monitor struct {
	sampler  *Sampler
	store    *Store
	interval time.Duration
	log      zerolog.Logger
}

// NewMonitor wires a sampler to a store at the given interval.
// Non-positive interval falls back to DefaultInterval.
func NewMonitor(sampler *Sampler, store *Store, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{sampler: sampler, store: store, interval: interval, log: log}
}

// Run samples immediately, then on every tick, returning once ctx is
// canceled. Always returns nil so an errgroup join treats shutdown as
// clean.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.interval).Msg("telemetry monitor started")
	m.store.Append(m.sampler.Current(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("telemetry monitor stopped")
			return nil
		case <-ticker.C:
			m.store.Append(m.sampler.Current(ctx))
		}
	}
}
