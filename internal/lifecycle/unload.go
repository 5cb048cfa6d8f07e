package lifecycle

import (
	"context"
)

// Unload releases the serve handle for id and transitions the resource back
// to downloaded. Unloading a resource that is not loaded is a no-op success;
// the per-id lock guarantees it never releases a handle a concurrent Load
// just installed.
func (m *Manager) Unload(ctx context.Context, id string) error {
	if _, ok := m.catalog.Get(id); !ok {
		return ErrNotFound(id)
	}
	lk := m.opLock(id)
	lk.Lock()
	defer lk.Unlock()
	m.setInflight(id, "unload")
	defer m.clearInflight(id)

	m.mu.Lock()
	st := m.states[id]
	if st.phase != PhaseLoaded {
		m.mu.Unlock()
		return nil
	}
	h := st.handle
	st.handle = nil
	st.phase = PhaseDownloaded
	m.mu.Unlock()

	if err := m.backend.Release(h); err != nil {
		ferr := ErrBackendFailure(id, "unload", err)
		m.record(id, PhaseDownloaded, ferr)
		m.log.Error().Err(err).Str("model", id).Msg("unload failed")
		return ferr
	}
	m.record(id, PhaseDownloaded, nil)
	unloadsTotal.Inc()
	m.log.Info().Str("model", id).Msg("unload done")
	return nil
}
