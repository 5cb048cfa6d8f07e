package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelhostd/internal/backend"
	"modelhostd/internal/catalog"
	"modelhostd/internal/telemetry"
)

// fakeHandle decrements the backend's live-handle count exactly once.
type fakeHandle struct {
	b    *fakeBackend
	once sync.Once
}

func (h *fakeHandle) Close() error {
	h.once.Do(func() { h.b.live.Add(-1) })
	return nil
}

// fakeBackend is an in-memory Backend with failure and delay injection.
type fakeBackend struct {
	fetches    atomic.Int32
	live       atomic.Int32
	fetchErr   error
	matErr     error
	fetchGate  chan struct{} // when non-nil, Fetch blocks until closed
	footprint  int
	releaseErr error
}

func (b *fakeBackend) Fetch(ctx context.Context, repo, dest string) error {
	if b.fetchGate != nil {
		select {
		case <-b.fetchGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.fetches.Add(1)
	if b.fetchErr != nil {
		return b.fetchErr
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "weights.bin"), []byte("w"), 0o644)
}

func (b *fakeBackend) Materialize(ctx context.Context, path, device string, quant catalog.Quant) (backend.Handle, int, error) {
	if b.matErr != nil {
		return nil, 0, b.matErr
	}
	fp := b.footprint
	if fp == 0 {
		fp = 64
	}
	b.live.Add(1)
	return &fakeHandle{b: b}, fp, nil
}

func (b *fakeBackend) Release(h backend.Handle) error {
	if h != nil {
		_ = h.Close()
	}
	return b.releaseErr
}

type staticProbe struct{ accs []telemetry.Accelerator }

func (p staticProbe) Accelerators(ctx context.Context) []telemetry.Accelerator { return p.accs }

func testCatalog(ids ...string) *catalog.Catalog {
	descs := make([]catalog.Descriptor, 0, len(ids))
	for _, id := range ids {
		descs = append(descs, catalog.Descriptor{
			ID: id, Name: id, Repo: "org/" + id, SizeClass: "10MB",
			Capabilities: []string{"completion"}, Device: "auto", Quant: catalog.QuantNone,
		})
	}
	return catalog.New(descs)
}

func newTestManager(t *testing.T, b backend.Backend, probe AcceleratorLister, ids ...string) *Manager {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"r1"}
	}
	return New(ManagerConfig{
		Catalog:   testCatalog(ids...),
		Backend:   b,
		ModelsDir: t.TempDir(),
		Probe:     probe,
		OpTimeout: 30 * time.Second,
		Logger:    zerolog.Nop(),
	})
}

func TestDownloadLoadUnloadScenario(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()

	if info, _ := m.Info("r1"); info.Phase != string(PhaseNotDownloaded) {
		t.Fatalf("initial phase = %s", info.Phase)
	}
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase after download = %s", info.Phase)
	}
	if err := m.Load(ctx, "r1", "auto"); err != nil {
		t.Fatalf("load: %v", err)
	}
	info, _ := m.Info("r1")
	if info.Phase != string(PhaseLoaded) || !info.Loaded {
		t.Fatalf("phase after load = %+v", info)
	}
	if info.MemoryMB <= 0 {
		t.Fatalf("expected positive footprint, got %d", info.MemoryMB)
	}
	if _, ok := m.Get("r1"); !ok {
		t.Fatalf("handle absent while loaded")
	}
	list := m.List()
	loaded := 0
	for _, r := range list {
		if r.Loaded {
			loaded++
		}
	}
	if len(list) != 1 || loaded != 1 {
		t.Fatalf("list: %d total, %d loaded", len(list), loaded)
	}
	if err := m.Unload(ctx, "r1"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase after unload = %s", info.Phase)
	}
	if _, ok := m.Get("r1"); ok {
		t.Fatalf("handle present after unload")
	}
	if n := fb.live.Load(); n != 0 {
		t.Fatalf("%d live handles after unload", n)
	}
}

func TestGetIffLoaded(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()

	for _, step := range []func() error{
		func() error { return nil },
		func() error { return m.Download(ctx, "r1", false) },
		func() error { return m.Load(ctx, "r1", "cpu") },
		func() error { return m.Unload(ctx, "r1") },
	} {
		if err := step(); err != nil {
			t.Fatalf("step: %v", err)
		}
		info, _ := m.Info("r1")
		_, ok := m.Get("r1")
		if ok != (info.Phase == string(PhaseLoaded)) {
			t.Fatalf("phase %s but handle present=%v", info.Phase, ok)
		}
	}
}

func TestUnloadNotLoadedIsNoop(t *testing.T) {
	m := newTestManager(t, &fakeBackend{}, nil, "r1")
	ctx := context.Background()
	if err := m.Unload(ctx, "r1"); err != nil {
		t.Fatalf("unload on not_downloaded: %v", err)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseNotDownloaded) {
		t.Fatalf("phase changed by no-op unload: %s", info.Phase)
	}
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := m.Unload(ctx, "r1"); err != nil {
		t.Fatalf("unload on downloaded: %v", err)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase changed by no-op unload: %s", info.Phase)
	}
}

func TestLoadTwiceSingleLiveHandle(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := m.Load(ctx, "r1", "cpu"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := m.Load(ctx, "r1", "cpu"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if n := fb.live.Load(); n != 1 {
		t.Fatalf("expected exactly one live handle, got %d", n)
	}
}

func TestConcurrentDownloadsSingleFetch(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1")

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Download(context.Background(), "r1", false)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := fb.fetches.Load(); n != 1 {
		t.Fatalf("expected exactly one backend fetch, got %d", n)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase = %s", info.Phase)
	}
}

func TestDownloadsForDifferentIDsProceedIndependently(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1", "r2")
	var wg sync.WaitGroup
	for _, id := range []string{"r1", "r2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Download(context.Background(), id, false); err != nil {
				t.Errorf("download %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
	if n := fb.fetches.Load(); n != 2 {
		t.Fatalf("expected two fetches, got %d", n)
	}
}

func TestForceRedownload(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("repeat download: %v", err)
	}
	if n := fb.fetches.Load(); n != 1 {
		t.Fatalf("repeat download without force fetched again (%d)", n)
	}
	if err := m.Download(ctx, "r1", true); err != nil {
		t.Fatalf("forced download: %v", err)
	}
	if n := fb.fetches.Load(); n != 2 {
		t.Fatalf("forced download did not fetch (%d)", n)
	}
}

func TestDownloadFailureCleansUp(t *testing.T) {
	fb := &fakeBackend{fetchErr: errors.New("network unreachable")}
	m := newTestManager(t, fb, nil, "r1")
	err := m.Download(context.Background(), "r1", false)
	if err == nil || !IsBackendFailure(err) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	info, _ := m.Info("r1")
	if info.Phase != string(PhaseNotDownloaded) {
		t.Fatalf("phase = %s", info.Phase)
	}
	if info.LastError == "" {
		t.Fatalf("failure reason not recorded")
	}
}

func TestLoadFailureLeavesDownloaded(t *testing.T) {
	fb := &fakeBackend{matErr: errors.New("bad artifact")}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	err := m.Load(ctx, "r1", "cpu")
	if err == nil || !IsBackendFailure(err) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	info, _ := m.Info("r1")
	if info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase after failed load = %s", info.Phase)
	}
	if info.LastError == "" {
		t.Fatalf("failure reason not retrievable")
	}
	if _, ok := m.Get("r1"); ok {
		t.Fatalf("handle present after failed load")
	}
}

func TestLoadExhaustedMapping(t *testing.T) {
	fb := &fakeBackend{matErr: fmt.Errorf("%w: need 4096 MB", backend.ErrExhausted)}
	m := newTestManager(t, fb, nil, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	err := m.Load(ctx, "r1", "cpu")
	if !IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("phase = %s", info.Phase)
	}
}

func TestLoadNotDownloadedIsConflict(t *testing.T) {
	m := newTestManager(t, &fakeBackend{}, nil, "r1")
	err := m.Load(context.Background(), "r1", "cpu")
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoadDuringDownloadIsConflict(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{fetchGate: gate}
	m := newTestManager(t, fb, nil, "r1")

	done := make(chan error, 1)
	go func() { done <- m.Download(context.Background(), "r1", false) }()

	waitFor(t, func() bool { return m.inflightOp("r1") == "download" })
	if err := m.Load(context.Background(), "r1", "cpu"); !IsConflict(err) {
		t.Fatalf("expected conflict while download in flight, got %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("download: %v", err)
	}
}

func TestListDoesNotBlockOnInflightDownload(t *testing.T) {
	gate := make(chan struct{})
	fb := &fakeBackend{fetchGate: gate}
	m := newTestManager(t, fb, nil, "r1")

	done := make(chan error, 1)
	go func() { done <- m.Download(context.Background(), "r1", false) }()
	waitFor(t, func() bool { return m.inflightOp("r1") == "download" })

	listed := make(chan int, 1)
	go func() { listed <- len(m.List()) }()
	select {
	case n := <-listed:
		if n != 1 {
			t.Fatalf("list len = %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("List blocked on in-flight download")
	}
	close(gate)
	<-done
}

func TestDownloadCancellation(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	fb := &fakeBackend{fetchGate: gate}
	m := newTestManager(t, fb, nil, "r1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Download(ctx, "r1", false) }()
	waitFor(t, func() bool { return m.inflightOp("r1") == "download" })
	cancel()
	if err := <-done; err == nil {
		t.Fatalf("expected cancellation error")
	}
	info, _ := m.Info("r1")
	if info.Phase != string(PhaseNotDownloaded) {
		t.Fatalf("phase after canceled download = %s", info.Phase)
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	m := newTestManager(t, &fakeBackend{}, nil, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "nope", false); !IsNotFound(err) {
		t.Fatalf("download: %v", err)
	}
	if err := m.Load(ctx, "nope", "cpu"); !IsNotFound(err) {
		t.Fatalf("load: %v", err)
	}
	if err := m.Unload(ctx, "nope"); !IsNotFound(err) {
		t.Fatalf("unload: %v", err)
	}
	if _, ok := m.Get("nope"); ok {
		t.Fatalf("handle for unknown id")
	}
}

func TestAutoDeviceResolution(t *testing.T) {
	fb := &fakeBackend{}
	probe := staticProbe{accs: []telemetry.Accelerator{{ID: 0, Name: "card0"}}}
	m := newTestManager(t, fb, probe, "r1")
	ctx := context.Background()
	if err := m.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := m.Load(ctx, "r1", "auto"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if info, _ := m.Info("r1"); info.Device != "gpu" {
		t.Fatalf("device = %q", info.Device)
	}

	m2 := newTestManager(t, fb, staticProbe{}, "r1")
	if err := m2.Download(ctx, "r1", false); err != nil {
		t.Fatalf("download: %v", err)
	}
	if err := m2.Load(ctx, "r1", "auto"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if info, _ := m2.Info("r1"); info.Device != "cpu" {
		t.Fatalf("device = %q", info.Device)
	}
}

func TestCleanupAll(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb, nil, "r1", "r2", "r3")
	ctx := context.Background()
	for _, id := range []string{"r1", "r2"} {
		if err := m.Download(ctx, id, false); err != nil {
			t.Fatalf("download %s: %v", id, err)
		}
		if err := m.Load(ctx, id, "cpu"); err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
	}
	if err := m.CleanupAll(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n := fb.live.Load(); n != 0 {
		t.Fatalf("%d live handles after cleanup", n)
	}
	if m.Ready() {
		t.Fatalf("manager ready after cleanup")
	}
}

func TestPhaseReconstructedFromArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "r1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	m := New(ManagerConfig{
		Catalog:   testCatalog("r1", "r2"),
		Backend:   &fakeBackend{},
		ModelsDir: dir,
		Logger:    zerolog.Nop(),
	})
	if info, _ := m.Info("r1"); info.Phase != string(PhaseDownloaded) {
		t.Fatalf("r1 phase = %s", info.Phase)
	}
	if info, _ := m.Info("r2"); info.Phase != string(PhaseNotDownloaded) {
		t.Fatalf("r2 phase = %s", info.Phase)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}
