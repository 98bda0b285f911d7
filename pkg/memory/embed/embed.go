// Package embed provides pluggable text-embedding providers and the lazy
// gate that guards their initialization.
package embed

import (
	"context"
	"errors"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// ErrUnavailable is returned by the gate when no embedding backend could be
// initialized. Callers degrade to keyword search instead of failing.
var ErrUnavailable = errors.New("embedding backend unavailable")

// DummyEmbedder produces deterministic vectors from byte histograms. It is
// useful in tests and as a last-resort fallback.
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text), nil
}

func (DummyEmbedder) ModelName() string { return "dummy" }

// DummyEmbedding folds the text bytes into a fixed 768-dim vector.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, 768)
	for i, ch := range []byte(text) {
		vec[i%768] += float32(ch) / 255.0
	}
	return vec
}
