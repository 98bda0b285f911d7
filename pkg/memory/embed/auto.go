package embed

import (
	"context"
	"os"
	"strings"
)

// AutoFactory chooses a provider from the environment:
//
//	MNEMO_EMBED_PROVIDER=openai|google|gemini|vertex|ollama|fastembed|dummy
//	MNEMO_EMBED_MODEL=<model string>
//
// When the provider is unset it infers one from available API keys and
// OLLAMA_HOST. With nothing configured the factory fails, which the gate
// turns into a sticky ErrUnavailable.
func AutoFactory() Factory {
	return func() (Embedder, error) {
		provider := strings.ToLower(strings.TrimSpace(os.Getenv("MNEMO_EMBED_PROVIDER")))
		model := strings.TrimSpace(os.Getenv("MNEMO_EMBED_MODEL"))

		switch provider {
		case "openai":
			return NewOpenAIEmbedder(model)
		case "google", "gemini", "vertex", "vertexai":
			return NewVertexAIEmbedder(model)
		case "ollama":
			return NewOllamaEmbedder(model)
		case "fastembed":
			return NewFastEmbedder(context.Background(), defaultFastEmbedOptions())
		case "dummy":
			return DummyEmbedder{}, nil
		}

		if os.Getenv("OPENAI_API_KEY") != "" || os.Getenv("OPENAI_KEY") != "" {
			return NewOpenAIEmbedder(model)
		}
		if os.Getenv("GOOGLE_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != "" {
			return NewVertexAIEmbedder(model)
		}
		if os.Getenv("OLLAMA_HOST") != "" {
			return NewOllamaEmbedder(model)
		}
		return nil, ErrUnavailable
	}
}

// AutoGate is a gate over AutoFactory.
func AutoGate() *Gate {
	return NewGate(AutoFactory())
}
