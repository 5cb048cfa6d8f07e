package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelhostd/internal/backend"
	"modelhostd/internal/catalog"
	"modelhostd/internal/health"
	"modelhostd/internal/httpapi"
	"modelhostd/internal/lifecycle"
	"modelhostd/internal/telemetry"
	"modelhostd/pkg/types"
)

// newStack wires the full service the way main does: catalog file,
// local backend over a directory source, lifecycle manager, telemetry
// and health, all behind the HTTP mux.
func newStack(t *testing.T) *httptest.Server {
	t.Helper()

	source := t.TempDir()
	artifactDir := filepath.Join(source, "org", "tiny-test")
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(artifactDir, "weights.bin"), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}

	catalogPath := filepath.Join(t.TempDir(), "models.json")
	entry := `{"tiny-test":{"name":"Tiny Test","repo":"org/tiny-test","size":"10B","capabilities":["completion"],"device":"cpu","quantization":"none"}}`
	if err := os.WriteFile(catalogPath, []byte(entry), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	log := zerolog.Nop()
	be := backend.NewLocal(source, log)
	mgr := lifecycle.New(lifecycle.ManagerConfig{
		Catalog:   cat,
		Backend:   be,
		ModelsDir: t.TempDir(),
		OpTimeout: 30 * time.Second,
		Logger:    log,
	})
	sampler := telemetry.NewSampler(nil, "", log)
	store := telemetry.NewStore(16)
	checker := health.NewChecker(health.CheckerConfig{
		Lifecycle: mgr,
		Metrics:   sampler,
		Logger:    log,
	})

	return httptest.NewServer(httpapi.NewMux(httpapi.Services{
		Lifecycle: mgr,
		Store:     store,
		Sampler:   sampler,
		Health:    checker,
	}))
}

func listModels(t *testing.T, url string) []types.ResourceInfo {
	t.Helper()
	resp, err := http.Get(url + "/models")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	defer resp.Body.Close()
	var out types.ResourcesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	return out.Models
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestLifecycleOverHTTP(t *testing.T) {
	srv := newStack(t)
	defer srv.Close()

	models := listModels(t, srv.URL)
	if len(models) != 1 || models[0].Phase != "not_downloaded" {
		t.Fatalf("initial models = %+v", models)
	}

	resp := post(t, srv.URL+"/models/download", `{"model_id":"tiny-test"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ph := listModels(t, srv.URL)[0].Phase; ph != "downloaded" {
		t.Fatalf("phase after download = %s", ph)
	}

	resp = post(t, srv.URL+"/models/load", `{"model_id":"tiny-test","device":"auto"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d", resp.StatusCode)
	}
	m := listModels(t, srv.URL)[0]
	if m.Phase != "loaded" || !m.Loaded || m.MemoryMB <= 0 {
		t.Fatalf("after load: %+v", m)
	}

	// one loaded of one registered: lifecycle check is healthy
	hr, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	var overall struct {
		Resources struct {
			Status string `json:"status"`
		} `json:"resource_health"`
	}
	if err := json.NewDecoder(hr.Body).Decode(&overall); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	hr.Body.Close()
	if overall.Resources.Status != "healthy" {
		t.Fatalf("resource health = %s", overall.Resources.Status)
	}

	rz, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	rz.Body.Close()
	if rz.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d", rz.StatusCode)
	}

	resp = post(t, srv.URL+"/models/unload", `{"model_id":"tiny-test"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unload status = %d", resp.StatusCode)
	}
	m = listModels(t, srv.URL)[0]
	if m.Phase != "downloaded" || m.Loaded {
		t.Fatalf("after unload: %+v", m)
	}

	rz, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get readyz: %v", err)
	}
	rz.Body.Close()
	if rz.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz after unload = %d", rz.StatusCode)
	}

	// nothing loaded anymore: the per-kind check goes critical
	kr, err := http.Get(srv.URL + "/health/models")
	if err != nil {
		t.Fatalf("get models check: %v", err)
	}
	var rep struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(kr.Body).Decode(&rep); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	kr.Body.Close()
	if rep.Status != "critical" {
		t.Fatalf("models check after unload = %s", rep.Status)
	}
}

func TestUnknownModelOverHTTP(t *testing.T) {
	srv := newStack(t)
	defer srv.Close()

	resp := post(t, srv.URL+"/models/download", `{"model_id":"nope"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSystemResourcesOverHTTP(t *testing.T) {
	srv := newStack(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/system/resources")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, group := range []string{"cpu", "memory", "disk", "gpu", "network", "system"} {
		if _, ok := view[group]; !ok {
			t.Fatalf("missing %q group in %v", group, view)
		}
	}
}
