package backend

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"modelhostd/internal/catalog"
	"modelhostd/internal/common/fsutil"
)

// Local is a pure-Go backend. Artifacts are fetched from a base directory or
// HTTP(S) endpoint, and materialized by loading the artifact bytes into
// process memory. It is the default backend and the one exercised by tests.
type Local struct {
	source string
	client *http.Client
	log    zerolog.Logger

	// freeMemory is swapped out in tests to simulate exhaustion.
	freeMemory func() uint64
}

// NewLocal builds a Local backend fetching from source (directory path or
// HTTP base URL).
func NewLocal(source string, log zerolog.Logger) *Local {
	return &Local{
		source: source,
		client: &http.Client{Timeout: 10 * time.Minute},
		log:    log,
		freeMemory: func() uint64 {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0
			}
			return vm.Available
		},
	}
}

// Fetch downloads the artifact set for repo into dest. Work happens in a
// staging directory that is renamed into place only on success, so dest is
// absent or complete, never partial.
func (b *Local) Fetch(ctx context.Context, repo, dest string) error {
	staging := dest + ".partial"
	_ = os.RemoveAll(staging)
	if err := b.fetchTo(ctx, repo, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	// Replace any previous artifact set (force re-download path).
	_ = os.RemoveAll(dest)
	if err := os.Rename(staging, dest); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("install artifacts: %w", err)
	}
	b.log.Debug().Str("repo", repo).Str("dest", dest).Msg("artifacts fetched")
	return nil
}

func (b *Local) fetchTo(ctx context.Context, repo, staging string) error {
	ref := repo
	if !isHTTP(ref) && isHTTP(b.source) {
		ref = strings.TrimSuffix(b.source, "/") + "/" + repo
	}
	if isHTTP(ref) {
		return b.httpFetch(ctx, ref, staging)
	}
	src := repo
	if !filepath.IsAbs(src) {
		src = filepath.Join(b.source, filepath.FromSlash(repo))
	}
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("artifact source: %w", err)
	}
	if fi.IsDir() {
		return fsutil.CopyDir(src, staging)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(filepath.Join(staging, fi.Name()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (b *Local) httpFetch(ctx context.Context, url, staging string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}
	name := filepath.Base(strings.TrimSuffix(url, "/"))
	if name == "" || name == "." {
		name = "artifact.bin"
	}
	f, err := os.Create(filepath.Join(staging, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	return f.Close()
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// localHandle keeps the materialized artifact bytes alive until Close.
type localHandle struct {
	path string
	bufs [][]byte
}

func (h *localHandle) Close() error {
	h.bufs = nil
	return nil
}

// Materialize loads the artifact set at path into process memory and returns
// a handle plus the measured footprint in MB. Quantization reduces the
// resident size estimate; this backend performs no numeric transformation.
func (b *Local) Materialize(ctx context.Context, path, device string, quant catalog.Quant) (Handle, int, error) {
	total, err := fsutil.DirSize(path)
	if err != nil {
		return nil, 0, fmt.Errorf("artifact set: %w", err)
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("artifact set at %s is empty", path)
	}
	need := uint64(total)
	switch quant {
	case catalog.QuantInt8:
		need /= 2
	case catalog.QuantInt4:
		need /= 4
	}
	if avail := b.freeMemory(); avail > 0 && need > avail {
		return nil, 0, fmt.Errorf("%w: need %d MB, %d MB available", ErrExhausted, need>>20, avail>>20)
	}

	var h localHandle
	h.path = path
	var loaded uint64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		buf, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.bufs = append(h.bufs, buf)
		loaded += uint64(len(buf))
		return nil
	})
	if err != nil {
		h.bufs = nil
		return nil, 0, err
	}
	footprintMB := int(loaded >> 20)
	if footprintMB < 1 {
		footprintMB = 1
	}
	b.log.Debug().Str("path", path).Str("device", device).Int("footprint_mb", footprintMB).Msg("resource materialized")
	return &h, footprintMB, nil
}

// Release frees a handle produced by Materialize.
func (b *Local) Release(h Handle) error {
	if h == nil {
		return nil
	}
	return h.Close()
}
