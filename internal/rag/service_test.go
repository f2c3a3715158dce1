package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag-qa/internal/chromemdb"
	"pdf-rag-qa/internal/chunker"
	"pdf-rag-qa/internal/config"
	"pdf-rag-qa/internal/db"
	"pdf-rag-qa/internal/embedding"
	"pdf-rag-qa/internal/llmservice"
	"pdf-rag-qa/internal/testutil"
)

type memoryRuns struct {
	runs []db.IngestionRun
	err  error
}

func (m *memoryRuns) Record(_ context.Context, run *db.IngestionRun) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memoryRuns) Recent(context.Context, int) ([]db.IngestionRun, error) {
	return m.runs, nil
}

func newService(t *testing.T, dataDir, dedup string, maxDistance float64) (*Service, *llmservice.Mock) {
	t.Helper()
	index, err := chromemdb.NewVectorDBManager(chromemdb.Options{
		Collection: "svc",
		InMemory:   true,
		Dedup:      dedup,
		Embedder:   embedding.NewMock(256),
	})
	require.NoError(t, err)
	gen := llmservice.NewMock("The answer [Source: doc1.pdf, Page: 1].")
	svc := NewService(
		ServiceOptions{DataDir: dataDir, Dedup: dedup},
		chunker.New(200, 20),
		index,
		NewRetriever(index, RetrieverOptions{TopK: 5, MaxDistance: maxDistance}),
		NewAnswerGenerator(gen),
	)
	return svc, gen
}

func TestIngestAndQuery(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "doc1.pdf",
		testutil.Sentences("warranty", 600), testutil.Sentences("shipping", 600))
	require.NoError(t, err)

	svc, gen := newService(t, dir, config.DedupAppend, 1.0)
	runs := &memoryRuns{}
	svc.WithRunLog(runs)

	summary, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 2, summary.Pages)
	assert.GreaterOrEqual(t, summary.Chunks, 2)
	assert.Equal(t, summary.Chunks, summary.Entries)
	assert.Equal(t, summary.Entries, svc.Count())

	require.Len(t, runs.runs, 1)
	assert.Equal(t, summary.Entries, runs.runs[0].Entries)
	assert.Equal(t, config.DedupAppend, runs.runs[0].Dedup)
	assert.Empty(t, runs.runs[0].Error)

	ans, err := svc.Query(context.Background(), "The warranty fact number is recorded here")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "doc1.pdf", ans.Sources[0].Document)
	assert.Equal(t, 1, ans.Sources[0].Page)
}

func TestReingestAppendDoubles(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "a.pdf", testutil.Sentences("alpha", 500))
	require.NoError(t, err)

	svc, _ := newService(t, dir, config.DedupAppend, 1.0)
	first, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*first.Entries, svc.Count())
}

func TestReingestHashStable(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "a.pdf", testutil.Sentences("alpha", 500))
	require.NoError(t, err)

	svc, _ := newService(t, dir, config.DedupHash, 1.0)
	first, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Entries, svc.Count())
}

func TestQueryUnrelatedStrictThreshold(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "a.pdf", testutil.Sentences("photosynthesis", 400))
	require.NoError(t, err)

	svc, gen := newService(t, dir, config.DedupAppend, 0.5)
	_, err = svc.Ingest(context.Background())
	require.NoError(t, err)

	ans, err := svc.Query(context.Background(), "zebra xylophone quasar")
	require.NoError(t, err)
	assert.Equal(t, "Insufficient evidence in the document corpus", ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, gen.Calls)
}

func TestIngestEmptyDirectory(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), config.DedupAppend, 1.0)
	summary, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IngestSummary{}, summary)
	assert.Zero(t, svc.Count())
}

func TestIngestRunLogFailureIgnored(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "a.pdf", "short page")
	require.NoError(t, err)

	svc, _ := newService(t, dir, config.DedupAppend, 1.0)
	svc.WithRunLog(&memoryRuns{err: errors.New("db down")})
	_, err = svc.Ingest(context.Background())
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "a.pdf", "some content here")
	require.NoError(t, err)

	svc, _ := newService(t, dir, config.DedupAppend, 1.0)
	_, err = svc.Ingest(context.Background())
	require.NoError(t, err)
	require.Positive(t, svc.Count())

	require.NoError(t, svc.Reset())
	assert.Zero(t, svc.Count())
}

func TestIngestionsWithoutLog(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), config.DedupAppend, 1.0)
	runs, err := svc.Ingestions(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
