package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag-qa/internal/config"
	"pdf-rag-qa/internal/embedding"
	"pdf-rag-qa/internal/helper"
	"pdf-rag-qa/internal/models"
)

// ErrNoCollection is returned when the collection is missing from the
// database, e.g. after an import that did not contain it.
var ErrNoCollection = errors.New("collection not found")

type Options struct {
	Dir           string
	Collection    string
	InMemory      bool
	Compress      bool
	EncryptionKey string
	// Dedup is config.DedupAppend or config.DedupHash.
	Dedup    string
	Embedder embeddings.Embedder
}

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db *chromem.DB
	// mu guards collection; Clear and Import replace it.
	mu         sync.RWMutex
	collection *chromem.Collection
	embedder   embeddings.Embedder
	name       string
	dbPath     string
	compress   bool
	// encryptionKey is optional; chromem needs 32 bytes when set.
	encryptionKey string
	dedup         string
}

// NewVectorDBManager opens the database and gets or creates the collection.
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	if opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	var (
		db  *chromem.DB
		err error
	)
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(opts.Dir); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(opts.Dir, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		embedder:      opts.Embedder,
		name:          opts.Collection,
		dbPath:        opts.Dir,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
		dedup:         opts.Dedup,
	}
	c, err := m.getOrCreateCollection()
	if err != nil {
		return nil, err
	}
	m.collection = c
	log.Info().Str("collection", m.name).Int("count", m.Count()).Bool("in_memory", opts.InMemory).Msg("Vector store ready")
	return m, nil
}

// create or read collection
func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.name, nil, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return c, nil
}

func (m *VectorDBManager) embedFunc(ctx context.Context, text string) ([]float32, error) {
	return m.embedder.EmbedQuery(ctx, text)
}

// Upsert embeds the chunks and adds them to the collection. It returns the
// number of entries written.
func (m *VectorDBManager) Upsert(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, wrapBackend(err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", embedding.ErrBackend, len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		id, err := m.entryID(c)
		if err != nil {
			return 0, err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.Content,
			Metadata:  metadata(c),
			Embedding: vectors[i],
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	log.Info().Int("entries", len(docs)).Int("count", m.collection.Count()).Msg("Upserted chunks")
	return len(docs), nil
}

func (m *VectorDBManager) entryID(c models.Chunk) (string, error) {
	if m.dedup == config.DedupHash {
		return helper.ContentHash(c.DocumentName, strconv.Itoa(c.PageNumber), strconv.Itoa(c.StartIndex), c.Content), nil
	}
	return helper.GenerateUUID()
}

func metadata(c models.Chunk) map[string]string {
	return map[string]string{
		models.MetaDocumentName: c.DocumentName,
		models.MetaPage:         strconv.Itoa(c.PageNumber),
		models.MetaChunkID:      c.ID,
		models.MetaStartIndex:   strconv.Itoa(c.StartIndex),
		models.MetaSource:       c.Source,
	}
}

// Query returns up to k entries nearest to text, closest first. Distance is
// the squared L2 distance between the unit vectors, 2 * (1 - cosine), in
// [0, 4].
func (m *VectorDBManager) Query(ctx context.Context, text string, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 || m.Count() == 0 {
		return nil, nil
	}
	vector, err := m.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, wrapBackend(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       min(k, count),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, models.RetrievedChunk{
			Chunk:    chunkFromResult(r),
			Distance: Distance(r.Similarity),
		})
	}
	return out, nil
}

// Distance converts a cosine similarity of unit vectors into squared L2
// distance.
func Distance(similarity float32) float64 {
	return min(4, max(0, 2*(1-float64(similarity))))
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[models.MetaPage])
	start, _ := strconv.Atoi(r.Metadata[models.MetaStartIndex])
	return models.Chunk{
		ID:           r.Metadata[models.MetaChunkID],
		Content:      r.Content,
		DocumentName: r.Metadata[models.MetaDocumentName],
		Source:       r.Metadata[models.MetaSource],
		PageNumber:   page,
		StartIndex:   start,
	}
}

// Clear drops the collection and recreates it empty.
func (m *VectorDBManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	c, err := m.getOrCreateCollection()
	if err != nil {
		return err
	}
	m.collection = c
	log.Info().Str("collection", m.name).Msg("Vector store cleared")
	return nil
}

func (m *VectorDBManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// ExportPath is the default backup file for the collection.
func (m *VectorDBManager) ExportPath() string {
	ext := ".gob"
	if m.compress {
		ext += ".gz"
	}
	if m.encryptionKey != "" {
		ext += ".enc"
	}
	return filepath.Join(m.dbPath, m.name+ext)
}

// export to file
func (m *VectorDBManager) Export(path string) error {
	if path == "" {
		path = m.ExportPath()
	}
	log.Debug().Str("collection", m.name).Str("path", path).Bool("compress", m.compress).Msg("Exporting collection")
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// import from file
func (m *VectorDBManager) Import(path string) error {
	if path == "" {
		path = m.ExportPath()
	}
	log.Debug().Str("collection", m.name).Str("path", path).Msg("Importing collection")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(path, m.encryptionKey, m.name); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	c := m.db.GetCollection(m.name, m.embedFunc)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoCollection, m.name)
	}
	m.collection = c
	return nil
}

func wrapBackend(err error) error {
	if errors.Is(err, embedding.ErrBackend) {
		return err
	}
	return fmt.Errorf("%w: %v", embedding.ErrBackend, err)
}
