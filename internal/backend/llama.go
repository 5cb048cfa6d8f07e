//go:build llama

package backend

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"modelhostd/internal/catalog"
	"modelhostd/internal/common/fsutil"
)

// Llama materializes GGUF artifacts through llama.cpp. Fetching is shared
// with the Local backend; only materialization differs.
type Llama struct {
	*Local
	ctxSize int
}

// NewLlama builds a llama.cpp-backed backend fetching from source.
func NewLlama(source string, ctxSize int, log zerolog.Logger) *Llama {
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	return &Llama{Local: NewLocal(source, log), ctxSize: ctxSize}
}

type llamaHandle struct {
	model *llama.LLama
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func (b *Llama) Materialize(ctx context.Context, path, device string, quant catalog.Quant) (Handle, int, error) {
	gguf, err := findGGUF(path)
	if err != nil {
		return nil, 0, err
	}
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}
	m, err := llama.New(gguf, llama.SetContext(b.ctxSize))
	if err != nil {
		return nil, 0, fmt.Errorf("llama load %s: %w", gguf, err)
	}
	size, err := fsutil.DirSize(gguf)
	if err != nil {
		size = 0
	}
	footprintMB := int(size >> 20)
	if footprintMB < 1 {
		footprintMB = 1
	}
	return &llamaHandle{model: m}, footprintMB, nil
}

func (b *Llama) Release(h Handle) error {
	if h == nil {
		return nil
	}
	return h.Close()
}

func findGGUF(dir string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && d.Type().IsRegular() && strings.HasSuffix(strings.ToLower(d.Name()), ".gguf") {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no gguf artifact under %s", dir)
	}
	return found, nil
}
