package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"multi-model-summarizer/internal/ai"
	"multi-model-summarizer/internal/config"

	"golang.org/x/sync/singleflight"
)

// Strategy is how a model's input is shaped before generation.
type Strategy string

const (
	// StrategyChunked splits text into fixed-size chunks, summarizes each,
	// and space-joins the results in order.
	StrategyChunked Strategy = "chunked"
	// StrategyTruncate feeds the leading MaxInputTokens of the text as one input.
	StrategyTruncate Strategy = "truncate"
)

var ErrUnknownModel = errors.New("unknown model")

// ModelSpec describes one selectable summarization model.
type ModelSpec struct {
	Name           string   `json:"name"`
	ID             string   `json:"model_id"`
	Strategy       Strategy `json:"strategy"`
	MaxInputTokens int      `json:"max_input_tokens"`
	ChunkSize      int      `json:"chunk_size,omitempty"` // characters per chunk
	Prefix         string   `json:"prefix,omitempty"`
}

// DefaultModels returns the T5, BART and Pegasus entries, in menu order.
func DefaultModels(cfg *config.Config) []ModelSpec {
	return []ModelSpec{
		{
			Name:           "T5",
			ID:             cfg.ModelT5ID,
			Strategy:       StrategyTruncate,
			MaxInputTokens: 512,
			Prefix:         "summarize: ",
		},
		{
			Name:           "BART",
			ID:             cfg.ModelBARTID,
			Strategy:       StrategyChunked,
			MaxInputTokens: 1024,
			ChunkSize:      1000,
		},
		{
			Name:           "Pegasus",
			ID:             cfg.ModelPegasusID,
			Strategy:       StrategyTruncate,
			MaxInputTokens: 1024,
		},
	}
}

// ModelHandle is a checkpoint the backend has confirmed ready.
type ModelHandle struct {
	Spec     ModelSpec
	Device   string
	LoadedAt time.Time
}

// ModelRegistry loads each model at most once per process. Concurrent first
// requests share one load; failed loads are retried by the next caller.
// Handles live until the process exits.
type ModelRegistry struct {
	backend ai.Backend
	log     *slog.Logger

	specs map[string]ModelSpec
	order []string

	mu     sync.RWMutex
	loaded map[string]*ModelHandle
	group  singleflight.Group
}

func NewModelRegistry(backend ai.Backend, specs []ModelSpec, log *slog.Logger) *ModelRegistry {
	r := &ModelRegistry{
		backend: backend,
		log:     log,
		specs:   make(map[string]ModelSpec, len(specs)),
		loaded:  make(map[string]*ModelHandle, len(specs)),
	}
	for _, s := range specs {
		key := modelKey(s.Name)
		r.specs[key] = s
		r.order = append(r.order, key)
	}
	return r
}

// Lookup resolves a model name case-insensitively.
func (r *ModelRegistry) Lookup(name string) (ModelSpec, error) {
	spec, ok := r.specs[modelKey(name)]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return spec, nil
}

// Models lists the registered models in menu order.
func (r *ModelRegistry) Models() []ModelSpec {
	out := make([]ModelSpec, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.specs[key])
	}
	return out
}

// Model names match case-insensitively and ignore surrounding blanks.
func modelKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Loaded reports whether name already has a ready handle.
func (r *ModelRegistry) Loaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaded[modelKey(name)]
	return ok
}

// Get returns the handle for name, loading the checkpoint on first use.
func (r *ModelRegistry) Get(ctx context.Context, name string) (*ModelHandle, error) {
	spec, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	key := modelKey(spec.Name)

	r.mu.RLock()
	h, ok := r.loaded[key]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		h, ok := r.loaded[key]
		r.mu.RUnlock()
		if ok {
			return h, nil
		}

		start := time.Now()
		// One caller giving up must not fail the load for the others
		info, err := r.backend.Load(context.WithoutCancel(ctx), spec.ID)
		if err != nil {
			return nil, err
		}

		h = &ModelHandle{Spec: spec, Device: info.Device, LoadedAt: time.Now()}
		r.mu.Lock()
		r.loaded[key] = h
		r.mu.Unlock()

		r.log.InfoContext(ctx, "model loaded",
			"model", spec.Name,
			"model_id", spec.ID,
			"device", info.Device,
			"duration", time.Since(start),
		)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.log.DebugContext(ctx, "model load shared", "model", spec.Name)
	}
	return v.(*ModelHandle), nil
}

// Preload warms every model, returning the joined load errors.
func (r *ModelRegistry) Preload(ctx context.Context) error {
	var errs []error
	for _, spec := range r.Models() {
		if _, err := r.Get(ctx, spec.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
