//go:build !fastembed

package embed

import (
	"context"
	"fmt"
)

// FastEmbedOptions configures the local ONNX embedding model. Without the
// fastembed tag the model field is absent and construction always fails.
type FastEmbedOptions struct {
	CacheDir  string
	MaxLength int
	BatchSize int
}

type FastEmbedder struct{}

func defaultFastEmbedOptions() *FastEmbedOptions { return nil }

func NewFastEmbedder(ctx context.Context, opts *FastEmbedOptions) (Embedder, error) {
	return nil, fmt.Errorf("fastembed support not included; rebuild with -tags fastembed")
}

func (FastEmbedder) Close() error { return nil }

func (FastEmbedder) ModelName() string { return "" }

func (FastEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("fastembed support not included")
}

func (FastEmbedder) EmbedBatch(ctx context.Context, docs []string) ([][]float32, error) {
	return nil, fmt.Errorf("fastembed support not included")
}
