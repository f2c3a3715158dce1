package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/helper"
	"pdf-rag-qa/internal/llmservice"
	"pdf-rag-qa/internal/models"
)

type AnswerGenerator struct {
	gen llmservice.Generator
}

func NewAnswerGenerator(gen llmservice.Generator) *AnswerGenerator {
	return &AnswerGenerator{gen: gen}
}

// Generate answers question from chunks. Model failures are reported in the
// answer text, never as an error.
func (a *AnswerGenerator) Generate(ctx context.Context, question string, chunks []models.Chunk) models.Answer {
	if len(chunks) == 0 {
		return models.Answer{Answer: models.InsufficientAnswer, Sources: []models.Source{}}
	}

	system := fmt.Sprintf(models.SystemPromptTemplate, BuildContext(chunks))
	log.Info().Int("chunks", len(chunks)).Str("generator", fmt.Sprintf("%T", a.gen)).Msg("Generating answer")
	text, err := a.gen.Generate(ctx, system, question)
	if err != nil {
		log.Error().Err(err).Msg("Error generating answer")
		text = fmt.Sprintf("Error generating answer: %v", err)
	}
	return models.Answer{Answer: text, Sources: Sources(chunks)}
}

// BuildContext renders the chunks into the prompt context block.
func BuildContext(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf(models.ContextChunkTemplate,
			displayName(c), displayPage(c), strings.ReplaceAll(c.Content, "\n", " "))
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Sources lists one source per distinct document and page, in order of
// first appearance.
func Sources(chunks []models.Chunk) []models.Source {
	seen := make(map[string]bool)
	sources := []models.Source{}
	for _, c := range chunks {
		key := fmt.Sprintf("%s_p%d", displayName(c), c.PageNumber)
		if seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, models.Source{
			Document: displayName(c),
			Page:     c.PageNumber,
			Snippet:  helper.Truncate(c.Content, models.SnippetLength) + "...",
		})
	}
	return sources
}

func displayName(c models.Chunk) string {
	if c.DocumentName == "" {
		return models.UnknownValue
	}
	return c.DocumentName
}

func displayPage(c models.Chunk) string {
	if c.PageNumber <= 0 {
		return models.UnknownValue
	}
	return strconv.Itoa(c.PageNumber)
}
