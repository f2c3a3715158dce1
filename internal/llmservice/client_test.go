package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag-qa/internal/config"
)

type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	reply    string
	err      error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestModelGenerator(t *testing.T) {
	m := &fakeModel{reply: "forty-two"}
	out, err := NewModelGenerator(m, 0.2).Generate(context.Background(), "system rules", "what is it?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", out)

	require.Len(t, m.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "system rules"}, m.messages[0].Parts[0])
	assert.Equal(t, schema.ChatMessageTypeHuman, m.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "what is it?"}, m.messages[1].Parts[0])
	assert.InDelta(t, 0.2, m.opts.Temperature, 1e-9)
}

func TestModelGeneratorError(t *testing.T) {
	m := &fakeModel{err: errors.New("quota exceeded")}
	_, err := NewModelGenerator(m, 0).Generate(context.Background(), "s", "q")
	assert.EqualError(t, err, "quota exceeded")
}

func TestMockCycles(t *testing.T) {
	m := NewMock("one", "two")
	ctx := context.Background()
	for _, want := range []string{"one", "two", "one"} {
		got, err := m.Generate(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, m.Calls)
}

func TestNewFallsBackOnInitError(t *testing.T) {
	g := New(&config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gemini-2.5-flash"})
	out, err := g.Generate(context.Background(), "s", "q")
	require.NoError(t, err)
	assert.Equal(t, InitFailedAnswer, out)
}

func TestNewProviders(t *testing.T) {
	assert.IsType(t, &Mock{}, New(&config.LLMConfig{Provider: config.ProviderMock}))
	assert.IsType(t, &ModelGenerator{}, New(&config.LLMConfig{
		Provider: config.ProviderOpenAI, Key: "k", Model: "m", BaseURL: "http://localhost:1/v1",
	}))
	assert.IsType(t, &ModelGenerator{}, New(&config.LLMConfig{
		Provider: config.ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434",
	}))
}
