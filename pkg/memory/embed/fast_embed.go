//go:build fastembed

package embed

import (
	"context"
	"os"
	"strings"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedOptions configures the local ONNX embedding model.
type FastEmbedOptions struct {
	Model     fastembed.EmbeddingModel
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedder runs embedding inference in-process, no server required.
// Available only when building with the fastembed tag.
type FastEmbedder struct {
	flag  *fastembed.FlagEmbedding
	model string
	batch int
}

func defaultFastEmbedOptions() *FastEmbedOptions {
	return &FastEmbedOptions{CacheDir: os.Getenv("MNEMO_FASTEMBED_CACHE")}
}

// NewFastEmbedder loads the model, downloading it into the cache directory
// on first use.
func NewFastEmbedder(ctx context.Context, opts *FastEmbedOptions) (Embedder, error) {
	if opts == nil {
		opts = defaultFastEmbedOptions()
	}
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:     opts.Model,
		CacheDir:  opts.CacheDir,
		MaxLength: opts.MaxLength,
	})
	if err != nil {
		return nil, err
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 32
	}
	name := string(opts.Model)
	if name == "" {
		name = "fastembed"
	}
	return &FastEmbedder{flag: flag, model: name, batch: batch}, nil
}

// Close releases the ONNX runtime resources.
func (e *FastEmbedder) Close() error {
	if e.flag != nil {
		e.flag.Destroy()
	}
	return nil
}

func (e *FastEmbedder) ModelName() string { return e.model }

func (e *FastEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.flag.QueryEmbed(text)
}

// EmbedBatch embeds documents in batches, adding the passage prefix the
// model expects when missing.
func (e *FastEmbedder) EmbedBatch(ctx context.Context, docs []string) ([][]float32, error) {
	inputs := make([]string, len(docs))
	for i, d := range docs {
		if strings.HasPrefix(d, "passage:") {
			inputs[i] = d
		} else {
			inputs[i] = "passage: " + d
		}
	}
	return e.flag.PassageEmbed(inputs, e.batch)
}
