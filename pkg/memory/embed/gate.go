package embed

import (
	"context"
	"sync"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// Factory constructs an embedding provider. It is invoked at most once, on
// the first embedding request, never at store time.
type Factory func() (Embedder, error)

// Gate wraps a provider behind lazy one-shot initialization. A failed
// initialization is sticky: every later call returns ErrUnavailable without
// retrying, so a missing model file or API key costs one attempt, not one
// per memory.
type Gate struct {
	factory Factory
	once    sync.Once
	inner   Embedder
	err     error
}

// NewGate builds a gate around the factory. A nil factory yields a gate that
// is permanently unavailable.
func NewGate(factory Factory) *Gate {
	return &Gate{factory: factory}
}

// NewGateFor wraps an already-constructed embedder.
func NewGateFor(e Embedder) *Gate {
	return NewGate(func() (Embedder, error) { return e, nil })
}

func (g *Gate) init() {
	if g.factory == nil {
		g.err = ErrUnavailable
		return
	}
	inner, err := g.factory()
	if err != nil || inner == nil {
		g.err = ErrUnavailable
		return
	}
	g.inner = inner
}

// Embed returns a unit-normalized vector for the text, or ErrUnavailable if
// the backend never came up. Transient provider errors pass through verbatim
// and do not poison the gate.
func (g *Gate) Embed(ctx context.Context, text string) ([]float32, error) {
	g.once.Do(g.init)
	if g.err != nil {
		return nil, g.err
	}
	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrNotSupported
	}
	return model.Normalize(vec), nil
}

// Available reports whether the backend initialized successfully. It forces
// initialization.
func (g *Gate) Available() bool {
	g.once.Do(g.init)
	return g.err == nil
}

type modelNamer interface {
	ModelName() string
}

// ModelName reports the active backend's model identifier, or empty when no
// backend is available. It forces initialization.
func (g *Gate) ModelName() string {
	g.once.Do(g.init)
	if g.err != nil {
		return ""
	}
	if n, ok := g.inner.(modelNamer); ok {
		return n.ModelName()
	}
	return ""
}
