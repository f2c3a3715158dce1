package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultMockDimension = 1536

// Mock is a deterministic embedder for offline runs and tests. Each text is
// hashed word by word into a fixed number of buckets and normalized, so
// texts sharing words land close together.
type Mock struct {
	dimension int
}

func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = defaultMockDimension
	}
	return &Mock{dimension: dimension}
}

func (m *Mock) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *Mock) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

func (m *Mock) vector(text string) []float32 {
	v := make([]float32, m.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dimension)]++
	}
	if len(words) == 0 {
		v[0] = 1
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
