package lifecycle

import (
	"context"
	"os"
	"time"
)

// Download fetches the artifact set for id into its resource-scoped
// directory. Already-downloaded resources are a no-op success unless force is
// set. Concurrent downloads of the same id are collapsed: exactly one backend
// fetch occurs and every caller observes its result.
func (m *Manager) Download(ctx context.Context, id string, force bool) error {
	if _, ok := m.catalog.Get(id); !ok {
		return ErrNotFound(id)
	}
	_, err, _ := m.group.Do("download:"+id, func() (interface{}, error) {
		return nil, m.download(ctx, id, force)
	})
	return err
}

func (m *Manager) download(ctx context.Context, id string, force bool) error {
	desc, _ := m.catalog.Get(id)
	lk := m.opLock(id)
	lk.Lock()
	defer lk.Unlock()
	m.setInflight(id, "download")
	defer m.clearInflight(id)

	m.mu.RLock()
	phase := m.states[id].phase
	m.mu.RUnlock()

	switch phase {
	case PhaseLoaded:
		if !force {
			return nil
		}
		return ErrConflict(id, "resource is loaded; unload before forcing a re-download")
	case PhaseDownloaded:
		if !force {
			m.log.Debug().Str("model", id).Msg("already downloaded")
			return nil
		}
	}

	dest := m.artifactPath(id)
	cctx, cancel := m.opCtx(ctx)
	defer cancel()
	start := time.Now()
	m.log.Info().Str("model", id).Str("repo", desc.Repo).Msg("download start")
	if err := m.backend.Fetch(cctx, desc.Repo, dest); err != nil {
		// Never leave a partially written artifact set behind.
		_ = os.RemoveAll(dest)
		ferr := ErrBackendFailure(id, "download", err)
		m.record(id, PhaseNotDownloaded, ferr)
		downloadFailures.Inc()
		m.log.Error().Err(err).Str("model", id).Msg("download failed")
		return ferr
	}
	m.record(id, PhaseDownloaded, nil)
	downloadsTotal.Inc()
	m.log.Info().Str("model", id).Dur("dur", time.Since(start)).Msg("download done")
	return nil
}
