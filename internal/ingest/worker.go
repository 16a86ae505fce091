package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tutorstack/tutord/internal/retrieval"
	"github.com/tutorstack/tutord/internal/storage"
)

// JobTypeIndexDocument is the job type enqueued when a document is submitted.
const JobTypeIndexDocument = "index_document"

// JobStore abstracts the job queue and document operations the worker needs.
// Implemented by storage.Store.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	UpdateDocumentStatus(id, status string) error
}

// BatchEmbedder generates embeddings for chunk batches.
// Implemented by retrieval.Embedder.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorInserter inserts chunk records into the vector store.
type VectorInserter interface {
	Insert(records []retrieval.Record) error
	DeleteByDocument(documentID string) error
}

// Worker processes index_document jobs from the SQLite job queue: it chunks
// the document, embeds the chunks, and inserts them into the vector store.
type Worker struct {
	store    JobStore
	embedder BatchEmbedder
	vectors  VectorInserter
	chunker  *Chunker
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder BatchEmbedder, vectors VectorInserter, chunker *Chunker, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		chunker:  chunker,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single index_document job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeIndexDocument})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type indexPayload struct {
	DocumentID string `json:"document_id"`
}

// IndexPayload serializes the payload for an index_document job.
func IndexPayload(documentID string) string {
	b, _ := json.Marshal(indexPayload{DocumentID: documentID})
	return string(b)
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	chunks := w.chunker.Split(doc.Content)
	if len(chunks) == 0 {
		if err := w.store.UpdateDocumentStatus(doc.ID, "failed"); err != nil {
			w.logger.Warn("could not update document status", "document_id", doc.ID, "error", err)
		}
		return fmt.Errorf("document %s has no indexable content", doc.ID)
	}

	vecs, err := w.embedder.EmbedAll(ctx, chunks)
	if err != nil {
		if statusErr := w.store.UpdateDocumentStatus(doc.ID, "failed"); statusErr != nil {
			w.logger.Warn("could not update document status", "document_id", doc.ID, "error", statusErr)
		}
		return fmt.Errorf("embedding chunks: %w", err)
	}

	// Re-indexing replaces any previous vectors for the document.
	if err := w.vectors.DeleteByDocument(doc.ID); err != nil {
		return fmt.Errorf("clearing old vectors: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = retrieval.Record{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Seq:        i,
			Text:       chunk,
			Embedding:  vecs[i],
			CreatedAt:  now,
		}
	}

	if err := w.vectors.Insert(records); err != nil {
		return fmt.Errorf("inserting vectors: %w", err)
	}

	if err := w.store.UpdateDocumentStatus(doc.ID, "indexed"); err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}

	w.logger.Info("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}
