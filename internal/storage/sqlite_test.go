package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDocumentRoundTrip(t *testing.T) {
	s := openTestStore(t)

	doc := Document{
		ID:        "doc-1",
		Title:     "Lecture 1",
		Source:    "lecture1.pdf",
		Content:   "Decision trees map options to outcomes.",
		Status:    "queued",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Title != doc.Title || got.Content != doc.Content || got.Status != "queued" {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, doc.CreatedAt)
	}

	if err := s.UpdateDocumentStatus("doc-1", "indexed"); err != nil {
		t.Fatalf("UpdateDocumentStatus: %v", err)
	}
	got, _ = s.GetDocument("doc-1")
	if got.Status != "indexed" {
		t.Errorf("status = %q", got.Status)
	}
}

func TestDocumentNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetDocument("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateDocumentStatus("missing", "indexed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDocumentStatus err = %v, want ErrNotFound", err)
	}
}

func TestProfileKeysUpsert(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("alice", "tone", "blunt"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProfileKey("alice", "tone", "gentle"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetProfileKey("alice", "role", "mentor"); err != nil {
		t.Fatal(err)
	}

	keys, err := s.GetProfileKeys("alice")
	if err != nil {
		t.Fatalf("GetProfileKeys: %v", err)
	}
	if keys["tone"] != "gentle" {
		t.Errorf("tone = %q, want upserted value", keys["tone"])
	}
	if keys["role"] != "mentor" {
		t.Errorf("role = %q", keys["role"])
	}

	other, err := s.GetProfileKeys("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("bob's keys = %v, want none", other)
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"ix-1", "ix-2"} {
		in := Interaction{
			ID:            id,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
			UserID:        "alice",
			Query:         "how?",
			Answer:        "carefully",
			Status:        "clean",
			Tokens:        10 + i,
			DurationMs:    100,
			QualityIssues: "[]",
		}
		if err := s.SaveInteraction(in); err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	got, err := s.GetInteraction("ix-1")
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.Query != "how?" || got.Tokens != 10 {
		t.Errorf("interaction = %+v", got)
	}

	list, err := s.ListInteractions(10, 0)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d", len(list))
	}
	// Newest first.
	if list[0].ID != "ix-2" {
		t.Errorf("list order: %s, %s", list[0].ID, list[1].ID)
	}

	if _, err := s.GetInteraction("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCounters(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveCounters(map[string]float64{"total_queries": 3, "total_tokens": 450}); err != nil {
		t.Fatalf("SaveCounters: %v", err)
	}
	// Upsert overwrites.
	if err := s.SaveCounters(map[string]float64{"total_queries": 4}); err != nil {
		t.Fatalf("SaveCounters: %v", err)
	}

	counters, err := s.LoadCounters()
	if err != nil {
		t.Fatalf("LoadCounters: %v", err)
	}
	if counters["total_queries"] != 4 || counters["total_tokens"] != 450 {
		t.Errorf("counters = %v", counters)
	}

	if err := s.ResetCounters(); err != nil {
		t.Fatalf("ResetCounters: %v", err)
	}
	counters, _ = s.LoadCounters()
	if len(counters) != 0 {
		t.Errorf("counters after reset = %v", counters)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "job-1", Type: "index_document", PayloadJSON: `{"document_id":"doc-1"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"index_document"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil || claimed.ID != "job-1" {
		t.Fatalf("claimed = %+v", claimed)
	}
	if claimed.Status != "running" {
		t.Errorf("status = %q, want running", claimed.Status)
	}
	if claimed.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want default 3", claimed.MaxAttempts)
	}

	// A running job cannot be claimed again.
	again, err := s.ClaimNextJob([]string{"index_document"})
	if err != nil {
		t.Fatal(err)
	}
	if again != nil {
		t.Errorf("claimed running job: %+v", again)
	}

	if err := s.CompleteJob("job-1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestJobRetryBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "index_document", PayloadJSON: "{}", MaxAttempts: 2}); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.ClaimNextJob([]string{"index_document"})
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v, %+v", err, claimed)
	}

	// First failure: back to pending with run_after pushed into the future.
	if err := s.FailJob("job-1", "embed timeout"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if j, err := s.ClaimNextJob([]string{"index_document"}); err != nil {
		t.Fatal(err)
	} else if j != nil {
		t.Errorf("job claimable before backoff elapsed: %+v", j)
	}
}

func TestJobFailsAfterMaxAttempts(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "index_document", PayloadJSON: "{}", MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimNextJob([]string{"index_document"}); err != nil {
		t.Fatal(err)
	}
	if err := s.FailJob("job-1", "hard failure"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	// Permanently failed: never claimable again.
	j, err := s.ClaimNextJob([]string{"index_document"})
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Errorf("failed job was claimed: %+v", j)
	}
}

func TestClaimNextJob_FiltersType(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "other_work", PayloadJSON: "{}"}); err != nil {
		t.Fatal(err)
	}

	j, err := s.ClaimNextJob([]string{"index_document"})
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Errorf("claimed job of wrong type: %+v", j)
	}

	if j, err := s.ClaimNextJob(nil); err != nil || j != nil {
		t.Errorf("ClaimNextJob(nil) = %+v, %v; want nil, nil", j, err)
	}
}
