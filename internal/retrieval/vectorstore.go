package retrieval

import "time"

// VectorStore is the interface for vector storage and similarity search.
// The default implementation uses SQLite with brute-force cosine similarity,
// which is comfortable for a single course corpus (thousands of chunks).
type VectorStore interface {
	// Insert adds records to the index.
	Insert(records []Record) error

	// Search performs vector similarity search, returning the top-K most
	// similar records ordered by score descending.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteByDocument removes all records belonging to a document.
	DeleteByDocument(documentID string) error

	// Count returns the number of indexed records.
	Count() (int, error)
}

// Record is an embedded chunk of course material.
type Record struct {
	ID         string
	DocumentID string
	Source     string
	Seq        int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
