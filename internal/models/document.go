package models

// Page is the text of one page of a source document.
type Page struct {
	Content      string
	Source       string
	DocumentName string
	PageNumber   int
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID           string
	Content      string
	DocumentName string
	Source       string
	PageNumber   int
	StartIndex   int
	Sequence     int
}

// RetrievedChunk is a chunk returned by the vector index. Distance is the
// index's native metric (smaller is closer), Similarity is 1/(1+Distance).
type RetrievedChunk struct {
	Chunk      Chunk
	Distance   float64
	Similarity float64
}

type Source struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Snippet  string `json:"snippet"`
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Chunks strips the scores from retrieval results.
func Chunks(results []RetrievedChunk) []Chunk {
	out := make([]Chunk, 0, len(results))
	for _, r := range results {
		out = append(out, r.Chunk)
	}
	return out
}
