package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"modelhostd/internal/backend"
	"modelhostd/internal/catalog"
	"modelhostd/internal/common/fsutil"
	"modelhostd/pkg/types"
)

type Manager struct {
	mu     sync.RWMutex
	states map[string]*resourceState

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	catalog   *catalog.Catalog
	backend   backend.Backend
	dir       string
	probe     AcceleratorLister
	opTimeout time.Duration
	log       zerolog.Logger
	group     singleflight.Group
}

// New constructs a Manager. The phase of each resource is reconstructed from
// the presence of its downloaded artifacts; loaded state is never persisted.
func New(cfg ManagerConfig) *Manager {
	m := &Manager{
		states:    make(map[string]*resourceState),
		locks:     make(map[string]*sync.Mutex),
		catalog:   cfg.Catalog,
		backend:   cfg.Backend,
		dir:       cfg.ModelsDir,
		probe:     cfg.Probe,
		opTimeout: cfg.OpTimeout,
		log:       cfg.Logger,
	}
	if m.opTimeout <= 0 {
		m.opTimeout = defaultOpTimeout
	}
	now := time.Now()
	for _, d := range cfg.Catalog.List() {
		phase := PhaseNotDownloaded
		if fsutil.PathExists(m.artifactPath(d.ID)) {
			phase = PhaseDownloaded
		}
		m.states[d.ID] = &resourceState{phase: phase, lastTransition: now}
	}
	return m
}

func (m *Manager) artifactPath(id string) string {
	return filepath.Join(m.dir, id)
}

// opLock returns the per-resource mutex for id, creating it on first use.
// Holding it serializes download/load/unload for that id only.
func (m *Manager) opLock(id string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	lk, ok := m.locks[id]
	if !ok {
		lk = &sync.Mutex{}
		m.locks[id] = lk
	}
	return lk
}

// opCtx bounds a backend call by the configured operation timeout unless the
// caller already supplied an earlier deadline.
func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opTimeout)
}

func (m *Manager) setInflight(id, op string) {
	m.mu.Lock()
	if st := m.states[id]; st != nil {
		st.inflight = op
	}
	m.mu.Unlock()
}

func (m *Manager) clearInflight(id string) { m.setInflight(id, "") }

func (m *Manager) inflightOp(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st := m.states[id]; st != nil {
		return st.inflight
	}
	return ""
}

// record commits a phase transition. A non-nil err is kept as the last error;
// a successful transition clears it.
func (m *Manager) record(id string, phase Phase, err error) {
	m.mu.Lock()
	st := m.states[id]
	if st == nil {
		m.mu.Unlock()
		return
	}
	st.phase = phase
	st.lastTransition = time.Now()
	if err != nil {
		st.lastErr = err.Error()
	} else {
		st.lastErr = ""
	}
	if phase != PhaseLoaded {
		st.device = ""
		st.memoryMB = 0
	}
	loaded := m.loadedCountLocked()
	m.mu.Unlock()
	loadedResources.Set(float64(loaded))
}

func (m *Manager) loadedCountLocked() int {
	n := 0
	for _, st := range m.states {
		if st.phase == PhaseLoaded {
			n++
		}
	}
	return n
}

// Get returns the opaque serve handle for id when the resource is loaded.
// "Not currently loaded" is a normal outcome, reported as ok=false.
func (m *Manager) Get(id string) (backend.Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.states[id]
	if st == nil || st.phase != PhaseLoaded || st.handle == nil {
		return nil, false
	}
	return st.handle, true
}

// Ready reports whether at least one resource is materialized.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedCountLocked() > 0
}

// List returns a snapshot of every catalog resource with its runtime phase.
// It never blocks on in-flight lifecycle operations.
func (m *Manager) List() []types.ResourceInfo {
	descs := m.catalog.List()
	out := make([]types.ResourceInfo, 0, len(descs))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range descs {
		out = append(out, m.infoLocked(d))
	}
	return out
}

// Info returns the snapshot for a single resource.
func (m *Manager) Info(id string) (types.ResourceInfo, bool) {
	d, ok := m.catalog.Get(id)
	if !ok {
		return types.ResourceInfo{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.infoLocked(d), true
}

func (m *Manager) infoLocked(d catalog.Descriptor) types.ResourceInfo {
	info := types.ResourceInfo{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		SizeClass:    d.SizeClass,
		Capabilities: append([]string(nil), d.Capabilities...),
	}
	st := m.states[d.ID]
	if st == nil {
		info.Phase = string(PhaseNotDownloaded)
		return info
	}
	info.Phase = string(st.phase)
	info.Loaded = st.phase == PhaseLoaded
	info.Device = st.device
	info.MemoryMB = st.memoryMB
	info.LoadMillis = st.loadDuration.Milliseconds()
	info.LastError = st.lastErr
	return info
}

// CleanupAll unloads every loaded resource, continuing past individual
// failures and returning them joined. Used at shutdown.
func (m *Manager) CleanupAll(ctx context.Context) error {
	var errs []error
	for _, d := range m.catalog.List() {
		if err := m.Unload(ctx, d.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
