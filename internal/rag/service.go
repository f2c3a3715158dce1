package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/chunker"
	"pdf-rag-qa/internal/db"
	"pdf-rag-qa/internal/models"
	"pdf-rag-qa/internal/parser"
)

// Index is the vector store behind the pipeline.
type Index interface {
	Searcher
	Upsert(ctx context.Context, chunks []models.Chunk) (int, error)
	Clear() error
	Count() int
}

// RunRecorder keeps a history of ingestion runs.
type RunRecorder interface {
	Record(ctx context.Context, run *db.IngestionRun) error
	Recent(ctx context.Context, limit int) ([]db.IngestionRun, error)
}

type ServiceOptions struct {
	DataDir string
	Loader  parser.LoaderOptions
	// Dedup is recorded with each ingestion run.
	Dedup string
}

type IngestSummary struct {
	Files   int `json:"files"`
	Pages   int `json:"pages"`
	Chunks  int `json:"chunks"`
	Entries int `json:"entries"`
}

// Service wires loading, chunking, indexing, retrieval and answering.
type Service struct {
	opts      ServiceOptions
	chunker   *chunker.Chunker
	index     Index
	retriever *Retriever
	answers   *AnswerGenerator
	runs      RunRecorder
}

func NewService(opts ServiceOptions, ch *chunker.Chunker, index Index, retriever *Retriever, answers *AnswerGenerator) *Service {
	return &Service{
		opts:      opts,
		chunker:   ch,
		index:     index,
		retriever: retriever,
		answers:   answers,
	}
}

// WithRunLog records every ingestion in runs.
func (s *Service) WithRunLog(runs RunRecorder) *Service {
	s.runs = runs
	return s
}

// Prepare loads and chunks the data directory without touching the index.
func (s *Service) Prepare() ([]models.Page, []models.Chunk, error) {
	pages, err := parser.LoadDirectory(s.opts.DataDir, s.opts.Loader)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	return pages, s.chunker.Split(pages), nil
}

// Ingest loads every document in the data directory and adds its chunks to
// the index.
func (s *Service) Ingest(ctx context.Context) (IngestSummary, error) {
	run := &db.IngestionRun{StartedAt: time.Now().UTC(), Dedup: s.opts.Dedup}
	summary, err := s.ingest(ctx)
	run.FinishedAt = time.Now().UTC()
	run.Files, run.Pages, run.Chunks, run.Entries = summary.Files, summary.Pages, summary.Chunks, summary.Entries
	if err != nil {
		run.Error = err.Error()
	}
	s.record(ctx, run)
	return summary, err
}

func (s *Service) ingest(ctx context.Context) (IngestSummary, error) {
	var summary IngestSummary
	pages, chunks, err := s.Prepare()
	if err != nil {
		return summary, err
	}
	summary.Pages, summary.Chunks = len(pages), len(chunks)
	summary.Files = countFiles(pages)
	if len(pages) == 0 {
		log.Warn().Str("dir", s.opts.DataDir).Msg("No documents found to ingest")
		return summary, nil
	}

	entries, err := s.index.Upsert(ctx, chunks)
	summary.Entries = entries
	if err != nil {
		return summary, fmt.Errorf("index chunks: %w", err)
	}
	log.Info().Interface("summary", summary).Msg("Ingestion complete")
	return summary, nil
}

func (s *Service) record(ctx context.Context, run *db.IngestionRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Record(ctx, run); err != nil {
		log.Error().Err(err).Msg("Error recording ingestion run")
	}
}

// Query answers question from the indexed documents.
func (s *Service) Query(ctx context.Context, question string) (models.Answer, error) {
	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return models.Answer{}, err
	}
	return s.answers.Generate(ctx, question, models.Chunks(results)), nil
}

// Reset removes every entry from the index.
func (s *Service) Reset() error {
	return s.index.Clear()
}

func (s *Service) Count() int {
	return s.index.Count()
}

// Ingestions returns recent runs, or an empty list without a run log.
func (s *Service) Ingestions(ctx context.Context, limit int) ([]db.IngestionRun, error) {
	if s.runs == nil {
		return []db.IngestionRun{}, nil
	}
	return s.runs.Recent(ctx, limit)
}

func countFiles(pages []models.Page) int {
	files := make(map[string]struct{})
	for _, p := range pages {
		files[p.Source] = struct{}{}
	}
	return len(files)
}
