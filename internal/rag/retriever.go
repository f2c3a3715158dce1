package rag

import (
	"context"

	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/models"
)

const mockSimilarity = 0.99

// Searcher returns up to k entries nearest to text, closest first.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]models.RetrievedChunk, error)
}

type RetrieverOptions struct {
	TopK        int
	MaxDistance float64
	// MockScores skips the distance filter and reports a fixed similarity.
	MockScores bool
}

type Retriever struct {
	index Searcher
	opts  RetrieverOptions
}

func NewRetriever(index Searcher, opts RetrieverOptions) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Retriever{index: index, opts: opts}
}

// Retrieve returns the chunks relevant to question, closest first. Entries
// farther than MaxDistance are dropped.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.RetrievedChunk, error) {
	results, err := r.index.Query(ctx, question, r.opts.TopK)
	if err != nil {
		return nil, err
	}

	kept := make([]models.RetrievedChunk, 0, len(results))
	for _, res := range results {
		if r.opts.MockScores {
			res.Similarity = mockSimilarity
			kept = append(kept, res)
			continue
		}
		if res.Distance > r.opts.MaxDistance {
			log.Debug().Str("chunk_id", res.Chunk.ID).Float64("distance", res.Distance).
				Float64("max_distance", r.opts.MaxDistance).Msg("Dropped chunk above distance threshold")
			continue
		}
		res.Similarity = Similarity(res.Distance)
		kept = append(kept, res)
	}
	log.Info().Int("candidates", len(results)).Int("kept", len(kept)).Msg("Retrieved chunks")
	return kept, nil
}

// Similarity maps a non-negative distance into (0, 1].
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
