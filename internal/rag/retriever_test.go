package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag-qa/internal/models"
)

type fakeSearcher struct {
	results []models.RetrievedChunk
	err     error
	gotK    int
}

func (f *fakeSearcher) Query(_ context.Context, _ string, k int) ([]models.RetrievedChunk, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func hit(id string, distance float64) models.RetrievedChunk {
	return models.RetrievedChunk{Chunk: models.Chunk{ID: id, Content: id}, Distance: distance}
}

func TestRetrieveFiltersByDistance(t *testing.T) {
	s := &fakeSearcher{results: []models.RetrievedChunk{hit("a", 0.1), hit("b", 0.5), hit("c", 0.9), hit("d", 1.4)}}
	r := NewRetriever(s, RetrieverOptions{TopK: 4, MaxDistance: 0.6})

	got, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 4, s.gotK)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Equal(t, "b", got[1].Chunk.ID)
	assert.InDelta(t, 1/1.1, got[0].Similarity, 1e-9)
	assert.InDelta(t, 1/1.5, got[1].Similarity, 1e-9)
}

func TestRetrieveKeepsBoundary(t *testing.T) {
	s := &fakeSearcher{results: []models.RetrievedChunk{hit("a", 1.0)}}
	got, err := NewRetriever(s, RetrieverOptions{TopK: 5, MaxDistance: 1.0}).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Similarity, 1e-9)
}

func TestRetrieveMockScores(t *testing.T) {
	s := &fakeSearcher{results: []models.RetrievedChunk{hit("a", 3), hit("b", 7)}}
	got, err := NewRetriever(s, RetrieverOptions{TopK: 5, MaxDistance: 0.1, MockScores: true}).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, g := range got {
		assert.Equal(t, mockSimilarity, g.Similarity)
	}
}

func TestRetrieveError(t *testing.T) {
	want := errors.New("index down")
	_, err := NewRetriever(&fakeSearcher{err: want}, RetrieverOptions{}).Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, want)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	s := &fakeSearcher{}
	_, err := NewRetriever(s, RetrieverOptions{}).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 5, s.gotK)
}

func TestSimilarityBoundsAndMonotone(t *testing.T) {
	prev := 2.0
	for _, d := range []float64{0, 0.01, 0.3, 1, 2, 10, 1e6} {
		s := Similarity(d)
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
		assert.Less(t, s, prev)
		prev = s
	}
	assert.Equal(t, 1.0, Similarity(0))
}
