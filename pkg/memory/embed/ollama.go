package embed

import (
	"context"

	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder asks a local Ollama server for embeddings over its HTTP
// API. The server address comes from OLLAMA_HOST, defaulting to
// localhost:11434.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

func NewOllamaEmbedder(model string) (Embedder, error) {
	cli, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}
	if model == "" {
		// Commonly available local embedding model; override as needed.
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{client: cli, model: model}, nil
}

func (e *OllamaEmbedder) ModelName() string { return e.model }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, ErrNotSupported
	}
	return res.Embeddings[0], nil
}
