package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/tutorstack/tutord/internal/retrieval"
	"github.com/tutorstack/tutord/internal/storage"
)

type fakeJobStore struct {
	job       *storage.Job
	docs      map[string]storage.Document
	statuses  map[string]string
	completed []string
	failed    map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		docs:     make(map[string]storage.Document),
		statuses: make(map[string]string),
		failed:   make(map[string]string),
	}
}

func (f *fakeJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	j := f.job
	f.job = nil
	return j, nil
}

func (f *fakeJobStore) CompleteJob(id string) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeJobStore) FailJob(id string, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobStore) GetDocument(id string) (storage.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return doc, nil
}

func (f *fakeJobStore) UpdateDocumentStatus(id, status string) error {
	f.statuses[id] = status
	return nil
}

type fakeBatchEmbedder struct {
	err error
}

func (f *fakeBatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeVectorInserter struct {
	inserted []retrieval.Record
	deleted  []string
}

func (f *fakeVectorInserter) Insert(records []retrieval.Record) error {
	f.inserted = append(f.inserted, records...)
	return nil
}

func (f *fakeVectorInserter) DeleteByDocument(documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

func indexJob(docID string) *storage.Job {
	return &storage.Job{
		ID:          "job-1",
		Type:        JobTypeIndexDocument,
		PayloadJSON: IndexPayload(docID),
	}
}

func TestRunOnce_NoJob(t *testing.T) {
	w := NewWorker(newFakeJobStore(), &fakeBatchEmbedder{}, &fakeVectorInserter{}, nil, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("expected done=false with empty queue")
	}
}

func TestRunOnce_IndexesDocument(t *testing.T) {
	store := newFakeJobStore()
	store.docs["doc-1"] = storage.Document{
		ID:      "doc-1",
		Source:  "lecture1.pdf",
		Content: "First paragraph about trees.\n\nSecond paragraph about grids.",
	}
	store.job = indexJob("doc-1")
	vectors := &fakeVectorInserter{}

	w := NewWorker(store, &fakeBatchEmbedder{}, vectors, NewChunker(40, 10), 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected done=true")
	}

	if len(vectors.deleted) != 1 || vectors.deleted[0] != "doc-1" {
		t.Errorf("old vectors not cleared: %v", vectors.deleted)
	}
	if len(vectors.inserted) != 2 {
		t.Fatalf("records = %d, want 2", len(vectors.inserted))
	}
	for i, r := range vectors.inserted {
		if r.DocumentID != "doc-1" || r.Source != "lecture1.pdf" || r.Seq != i {
			t.Errorf("record %d = %+v", i, r)
		}
		if r.ID == "" || len(r.Embedding) == 0 {
			t.Errorf("record %d missing id or embedding: %+v", i, r)
		}
	}

	if store.statuses["doc-1"] != "indexed" {
		t.Errorf("document status = %q", store.statuses["doc-1"])
	}
	if len(store.completed) != 1 {
		t.Errorf("job not completed: %v", store.completed)
	}
}

func TestRunOnce_EmptyDocumentFails(t *testing.T) {
	store := newFakeJobStore()
	store.docs["doc-1"] = storage.Document{ID: "doc-1", Content: "   \n\n  "}
	store.job = indexJob("doc-1")

	w := NewWorker(store, &fakeBatchEmbedder{}, &fakeVectorInserter{}, nil, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = %v, %v", done, err)
	}
	if store.statuses["doc-1"] != "failed" {
		t.Errorf("document status = %q, want failed", store.statuses["doc-1"])
	}
	if _, ok := store.failed["job-1"]; !ok {
		t.Error("job not marked failed")
	}
}

func TestRunOnce_EmbedFailure(t *testing.T) {
	store := newFakeJobStore()
	store.docs["doc-1"] = storage.Document{ID: "doc-1", Content: "Some real content here."}
	store.job = indexJob("doc-1")
	vectors := &fakeVectorInserter{}

	w := NewWorker(store, &fakeBatchEmbedder{err: errors.New("provider down")}, vectors, nil, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = %v, %v", done, err)
	}
	if store.statuses["doc-1"] != "failed" {
		t.Errorf("document status = %q, want failed", store.statuses["doc-1"])
	}
	if len(vectors.inserted) != 0 {
		t.Errorf("records inserted despite embed failure: %v", vectors.inserted)
	}
}

func TestRunOnce_MissingDocument(t *testing.T) {
	store := newFakeJobStore()
	store.job = indexJob("ghost")

	w := NewWorker(store, &fakeBatchEmbedder{}, &fakeVectorInserter{}, nil, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = %v, %v", done, err)
	}
	if _, ok := store.failed["job-1"]; !ok {
		t.Error("job for missing document not marked failed")
	}
}
