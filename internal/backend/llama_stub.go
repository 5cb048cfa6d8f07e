//go:build !llama

package backend

// This file provides a no-CGO stub for the llama backend. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real backend lives in llama.go (tagged 'llama').

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"modelhostd/internal/catalog"
)

// Llama is a stub that satisfies Backend but refuses to materialize without
// the 'llama' build tag. Fetching still works so artifacts can be staged.
type Llama struct {
	*Local
}

func NewLlama(source string, ctxSize int, log zerolog.Logger) *Llama {
	return &Llama{Local: NewLocal(source, log)}
}

func (b *Llama) Materialize(ctx context.Context, path, device string, quant catalog.Quant) (Handle, int, error) {
	return nil, 0, errors.New("llama support not built (missing 'llama' build tag)")
}
