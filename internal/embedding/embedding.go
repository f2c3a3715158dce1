package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag-qa/internal/config"
)

// ErrBackend wraps every failure of the embedding backend.
var ErrBackend = errors.New("embedding backend")

// New returns the embedder selected by cfg.Mode.
func New(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"mode":     cfg.Mode,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Loaded embedding config")

	switch cfg.Mode {
	case config.EmbeddingMock:
		return NewMock(cfg.Dimension), nil
	case config.EmbeddingLocal:
		return NewOllamaEmbedder(cfg)
	case config.EmbeddingHosted:
		return NewEmbedder(cfg.Key, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrBackend, cfg.Mode)
	}
}

// NewEmbedder creates an embedder for an OpenAI-compatible endpoint.
func NewEmbedder(apiKey, baseURL, embeddingModel string) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(embeddingModel),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: openai client: %v", ErrBackend, err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &backend{embedder: embedder}, nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama client: %v", ErrBackend, err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &backend{embedder: embedder}, nil
}

// backend tags errors of a remote embedder with ErrBackend.
type backend struct {
	embedder embeddings.Embedder
}

func (b *backend) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %d documents: %v", ErrBackend, len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d documents", ErrBackend, len(vectors), len(texts))
	}
	return vectors, nil
}

func (b *backend) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := b.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrBackend, err)
	}
	return vector, nil
}
