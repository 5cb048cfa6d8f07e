package lifecycle

import (
	"context"
	"errors"
	"time"

	"modelhostd/internal/backend"
)

// Load materializes a downloaded resource onto a device. A loaded resource is
// first unloaded so a second Load is a clean refresh, never a second live
// handle; when two Load calls race on one id the per-id lock serializes them
// and the last one to run wins. Requesting "auto" resolves to an accelerator
// when one is present, else the cpu.
func (m *Manager) Load(ctx context.Context, id, device string) error {
	desc, ok := m.catalog.Get(id)
	if !ok {
		return ErrNotFound(id)
	}
	if m.inflightOp(id) == "download" {
		return ErrConflict(id, "download in progress")
	}
	lk := m.opLock(id)
	lk.Lock()
	defer lk.Unlock()
	m.setInflight(id, "load")
	defer m.clearInflight(id)

	m.mu.Lock()
	st := m.states[id]
	if st.phase == PhaseNotDownloaded {
		m.mu.Unlock()
		return ErrConflict(id, "not downloaded")
	}
	prior := st.handle
	st.handle = nil
	st.phase = PhaseDownloaded
	m.mu.Unlock()

	// Implicit refresh: drop the previous materialization before loading.
	if prior != nil {
		if err := m.backend.Release(prior); err != nil {
			m.log.Warn().Err(err).Str("model", id).Msg("release of previous handle failed")
		}
	}

	if device == "" {
		device = desc.Device
	}
	dev := m.resolveDevice(ctx, device)

	cctx, cancel := m.opCtx(ctx)
	defer cancel()
	start := time.Now()
	m.log.Info().Str("model", id).Str("device", dev).Str("quant", string(desc.Quant)).Msg("load start")
	h, footprintMB, err := m.backend.Materialize(cctx, m.artifactPath(id), dev, desc.Quant)
	if err != nil {
		var ferr error
		if errors.Is(err, backend.ErrExhausted) {
			ferr = ErrResourceExhausted(id, err)
		} else {
			ferr = ErrBackendFailure(id, "load", err)
		}
		// The artifacts stay intact: the resource remains downloaded and
		// loadable after the cause is addressed.
		m.record(id, PhaseDownloaded, ferr)
		loadFailures.Inc()
		m.log.Error().Err(err).Str("model", id).Msg("load failed")
		return ferr
	}

	m.mu.Lock()
	st.handle = h
	st.phase = PhaseLoaded
	st.device = dev
	st.memoryMB = footprintMB
	st.loadDuration = time.Since(start)
	st.lastTransition = time.Now()
	st.lastErr = ""
	loaded := m.loadedCountLocked()
	m.mu.Unlock()
	loadedResources.Set(float64(loaded))
	loadsTotal.Inc()
	m.log.Info().
		Str("model", id).
		Str("device", dev).
		Int("footprint_mb", footprintMB).
		Dur("dur", time.Since(start)).
		Msg("load done")
	return nil
}

// resolveDevice maps "auto" to the first available accelerator, else cpu.
func (m *Manager) resolveDevice(ctx context.Context, device string) string {
	if device != "auto" && device != "" {
		return device
	}
	if m.probe != nil {
		if accs := m.probe.Accelerators(ctx); len(accs) > 0 {
			return "gpu"
		}
	}
	return "cpu"
}
