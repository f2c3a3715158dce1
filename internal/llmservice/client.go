package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag-qa/internal/config"
)

// InitFailedAnswer is what the fallback generator answers when the real
// client could not be built.
const InitFailedAnswer = "Error initializing LLM."

// Generator produces an answer from a system prompt and the user question.
type Generator interface {
	Generate(ctx context.Context, system, question string) (string, error)
}

// New builds the generator selected by cfg.Provider. A client that cannot
// be constructed is replaced by a mock answering InitFailedAnswer.
func New(cfg *config.LLMConfig) Generator {
	log.Debug().Interface("config", map[string]any{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Loaded llm config")

	if cfg.Provider == config.ProviderMock {
		return NewMock()
	}
	model, err := newModel(cfg)
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.Provider).Msg("Error initializing LLM")
		return NewMock(InitFailedAnswer)
	}
	return NewModelGenerator(model, cfg.Temperature)
}

func newModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.Key == "" {
			return nil, errors.New("api key is required")
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// ModelGenerator calls a langchaingo chat model.
type ModelGenerator struct {
	model       llms.Model
	temperature float64
}

func NewModelGenerator(model llms.Model, temperature float64) *ModelGenerator {
	return &ModelGenerator{model: model, temperature: temperature}
}

func (g *ModelGenerator) Generate(ctx context.Context, system, question string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, question),
	}
	res, err := g.model.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return res.Choices[0].Content, nil
}

var defaultMockResponses = []string{
	"This is a mock answer based on the provided context [Source: mock.pdf, Page: 1].",
	"Mock response: the documents mention this topic [Source: mock.pdf, Page: 2].",
}

// Mock cycles through a fixed list of responses.
type Mock struct {
	mu        sync.Mutex
	responses []string
	next      int
	Calls     int
}

func NewMock(responses ...string) *Mock {
	if len(responses) == 0 {
		responses = defaultMockResponses
	}
	return &Mock{responses: responses}
}

func (m *Mock) Generate(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.responses[m.next%len(m.responses)]
	m.next++
	m.Calls++
	return r, nil
}
