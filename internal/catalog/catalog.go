package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"modelhostd/internal/common/fsutil"
)

// Quant is the quantization policy applied when a resource is materialized.
type Quant string

const (
	QuantNone Quant = "none"
	QuantInt8 Quant = "int8"
	QuantInt4 Quant = "int4"
)

// Descriptor is the immutable declared metadata of one resource.
// Created at catalog load and never mutated afterwards.
type Descriptor struct {
	ID           string   `json:"-"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Repo         string   `json:"repo"`
	SizeClass    string   `json:"size"`
	Capabilities []string `json:"capabilities"`
	MaxContext   int      `json:"max_context"`
	Quant        Quant    `json:"quantization"`
	Device       string   `json:"device"`
}

// Catalog is a read-only registry of resource descriptors keyed by id.
type Catalog struct {
	byID  map[string]Descriptor
	order []string
}

// New builds a catalog from descriptors, preserving their order.
func New(descs []Descriptor) *Catalog {
	c := &Catalog{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if _, dup := c.byID[d.ID]; dup {
			continue
		}
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return c
}

// Load reads a JSON catalog file mapping id -> descriptor. If the file does
// not exist it is written once with the built-in defaults and those are
// returned, so a fresh install starts with a usable catalog.
func Load(path string) (*Catalog, error) {
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		defs := Defaults()
		if werr := write(expanded, defs); werr != nil {
			return nil, fmt.Errorf("write default catalog: %w", werr)
		}
		return New(defs), nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]Descriptor
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", expanded, err)
	}
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	descs := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		d := raw[id]
		d.ID = id
		if d.Device == "" {
			d.Device = "auto"
		}
		if d.Quant == "" {
			d.Quant = QuantNone
		}
		descs = append(descs, d)
	}
	return New(descs), nil
}

func write(path string, descs []Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		out[d.ID] = d
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// List returns all descriptors in stable order. The slice is a copy.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len reports the number of registered descriptors.
func (c *Catalog) Len() int { return len(c.byID) }

// Defaults is the built-in catalog used when no catalog file exists yet.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			ID:           "codebert-small",
			Name:         "CodeBERT Small",
			Description:  "Lightweight code understanding and generation model",
			Repo:         "microsoft/codebert-small",
			SizeClass:    "500MB",
			Capabilities: []string{"code-completion", "bug-detection", "documentation"},
			MaxContext:   512,
			Quant:        QuantNone,
			Device:       "auto",
		},
		{
			ID:           "distilgpt2-code",
			Name:         "DistilGPT2 Code",
			Description:  "Lightweight code generation model",
			Repo:         "distilgpt2",
			SizeClass:    "350MB",
			Capabilities: []string{"code-generation", "translation"},
			MaxContext:   1024,
			Quant:        QuantInt8,
			Device:       "auto",
		},
		{
			ID:           "tinyllama",
			Name:         "TinyLLaMA",
			Description:  "Small but capable language model for code",
			Repo:         "TinyLlama/TinyLlama-1.1B-Chat-v1.0",
			SizeClass:    "2.2GB",
			Capabilities: []string{"code-generation", "explanation", "refactoring"},
			MaxContext:   2048,
			Quant:        QuantInt4,
			Device:       "auto",
		},
		{
			ID:           "starcoderbase",
			Name:         "StarCoder Base",
			Description:  "Code generation model trained on multiple languages",
			Repo:         "bigcode/starcoderbase",
			SizeClass:    "15GB",
			Capabilities: []string{"code-generation", "translation", "completion"},
			MaxContext:   4096,
			Quant:        QuantInt8,
			Device:       "auto",
		},
	}
}
