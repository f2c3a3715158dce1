package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag-qa/internal/models"
)

const (
	defaultChunkSize    = 500 // characters
	defaultChunkOverlap = 50  // characters
)

// Separators are tried in order: paragraph, line, sentence, word, character.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(Separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

// Split chunks every page and numbers the chunks with one sequence shared
// by the whole call, so the same pages always yield the same chunks.
func (c *Chunker) Split(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, part := range c.splitPage(page.Content) {
			seq := len(chunks)
			chunks = append(chunks, models.Chunk{
				ID:           ChunkID(page.DocumentName, page.PageNumber, seq),
				Content:      part.text,
				DocumentName: page.DocumentName,
				Source:       page.Source,
				PageNumber:   page.PageNumber,
				StartIndex:   part.start,
				Sequence:     seq,
			})
		}
	}
	log.Info().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Split documents into chunks")
	return chunks
}

func ChunkID(documentName string, page, seq int) string {
	if documentName == "" {
		documentName = "doc"
	}
	return fmt.Sprintf("%s_%d_%d", documentName, page, seq)
}

type piece struct {
	text  string
	start int
}

func (c *Chunker) splitPage(content string) []piece {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	parts, err := c.splitter.SplitText(content)
	if err != nil {
		log.Warn().Err(err).Msg("Text splitter failed, falling back to fixed windows")
		parts = []string{content}
	}

	var out []piece
	index, prevLen := 0, 0
	for _, part := range c.enforceSize(parts) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		// start offset search mirrors the previous chunk end minus overlap
		offset := max(0, index+prevLen-c.overlap)
		found := runeIndexFrom(content, part, offset)
		if found < 0 {
			found = offset
		}
		index, prevLen = found, utf8.RuneCountInString(part)
		out = append(out, piece{text: part, start: found})
	}
	return out
}

// enforceSize re-cuts any part longer than the chunk size into windows that
// step by size-overlap.
func (c *Chunker) enforceSize(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		r := []rune(p)
		if len(r) <= c.size {
			out = append(out, p)
			continue
		}
		step := c.size - c.overlap
		for start := 0; start < len(r); start += step {
			end := min(start+c.size, len(r))
			out = append(out, string(r[start:end]))
			if end == len(r) {
				break
			}
		}
	}
	return out
}

// runeIndexFrom is strings.Index over runes, starting at rune offset from.
func runeIndexFrom(s, substr string, from int) int {
	r := []rune(s)
	if from > len(r) {
		return -1
	}
	i := strings.Index(string(r[from:]), substr)
	if i < 0 {
		return -1
	}
	return from + utf8.RuneCountInString(string(r[from:])[:i])
}
