package usage

import (
	"errors"
	"testing"
	"time"
)

type mockCounterStore struct {
	counters map[string]float64
	saves    int
	failSave bool
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{counters: make(map[string]float64)}
}

func (m *mockCounterStore) SaveCounters(counters map[string]float64) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.saves++
	for k, v := range counters {
		m.counters[k] = v
	}
	return nil
}

func (m *mockCounterStore) LoadCounters() (map[string]float64, error) {
	out := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out, nil
}

func (m *mockCounterStore) ResetCounters() error {
	m.counters = make(map[string]float64)
	return nil
}

func TestRecordAndSnapshot(t *testing.T) {
	tr := NewTracker(0.002, 0, nil)

	tr.Record(1000, 200*time.Millisecond, true)
	tr.Record(500, 400*time.Millisecond, false)

	s := tr.Snapshot()
	if s.TotalQueries != 2 {
		t.Errorf("queries = %d, want 2", s.TotalQueries)
	}
	if s.TotalTokens != 1500 {
		t.Errorf("tokens = %d, want 1500", s.TotalTokens)
	}
	if s.AvgResponseMs != 300 {
		t.Errorf("avg response = %v, want 300", s.AvgResponseMs)
	}
	if s.QualityPassRate != 0.5 {
		t.Errorf("pass rate = %v, want 0.5", s.QualityPassRate)
	}
	if s.AvgTokens != 750 {
		t.Errorf("avg tokens = %v, want 750", s.AvgTokens)
	}
	// 1500 tokens at $0.002 per 1K.
	if s.EstimatedCost != 0.003 {
		t.Errorf("cost = %v, want 0.003", s.EstimatedCost)
	}
}

func TestRecordFailure(t *testing.T) {
	tr := NewTracker(0.002, 0, nil)

	tr.Record(1000, 200*time.Millisecond, true)
	tr.RecordFailure()

	s := tr.Snapshot()
	if s.TotalQueries != 2 {
		t.Errorf("queries = %d, want 2", s.TotalQueries)
	}
	if s.FailedQueries != 1 {
		t.Errorf("failed = %d, want 1", s.FailedQueries)
	}
	if s.TotalTokens != 1000 {
		t.Errorf("tokens = %d, want 1000", s.TotalTokens)
	}
	// Averages cover completed queries only; the pass rate covers everything.
	if s.AvgResponseMs != 200 {
		t.Errorf("avg response = %v, want 200", s.AvgResponseMs)
	}
	if s.AvgTokens != 1000 {
		t.Errorf("avg tokens = %v, want 1000", s.AvgTokens)
	}
	if s.QualityPassRate != 0.5 {
		t.Errorf("pass rate = %v, want 0.5", s.QualityPassRate)
	}
}

func TestRecordFailure_OnlyFailures(t *testing.T) {
	tr := NewTracker(0.002, 0, nil)

	tr.RecordFailure()
	tr.RecordFailure()

	s := tr.Snapshot()
	if s.TotalQueries != 2 || s.FailedQueries != 2 {
		t.Errorf("snapshot = %+v, want 2 queries, 2 failed", s)
	}
	if s.AvgResponseMs != 0 || s.AvgTokens != 0 || s.QualityPassRate != 0 {
		t.Errorf("failures should carry no usage: %+v", s)
	}
}

func TestWindowCompaction(t *testing.T) {
	tr := NewTracker(0.002, 3, nil)

	tr.Record(10, 100*time.Millisecond, true)
	tr.Record(10, 300*time.Millisecond, true)

	s := tr.Snapshot()
	if s.RecentAvgResponseMs != 200 {
		t.Errorf("recent avg = %v, want 200", s.RecentAvgResponseMs)
	}

	// The third record trips the compaction; the window empties but the
	// cumulative average keeps every query.
	tr.Record(10, 200*time.Millisecond, true)
	s = tr.Snapshot()
	if s.RecentAvgResponseMs != 0 {
		t.Errorf("recent avg after compaction = %v, want 0", s.RecentAvgResponseMs)
	}
	if s.AvgResponseMs != 200 {
		t.Errorf("cumulative avg = %v, want 200", s.AvgResponseMs)
	}
	if s.TotalQueries != 3 {
		t.Errorf("queries = %d, want 3", s.TotalQueries)
	}

	tr.Record(10, 400*time.Millisecond, true)
	if s := tr.Snapshot(); s.RecentAvgResponseMs != 400 {
		t.Errorf("window should refill after compaction: %v", s.RecentAvgResponseMs)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	tr := NewTracker(0.002, 0, nil)
	s := tr.Snapshot()
	if s.TotalQueries != 0 || s.AvgResponseMs != 0 || s.QualityPassRate != 0 {
		t.Errorf("empty snapshot = %+v", s)
	}
}

func TestReset(t *testing.T) {
	store := newMockCounterStore()
	tr := NewTracker(0.002, 0, store)

	tr.Record(100, time.Second, true)
	if err := tr.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	s := tr.Snapshot()
	if s.TotalQueries != 0 || s.TotalTokens != 0 {
		t.Errorf("snapshot after reset = %+v", s)
	}
	if len(store.counters) != 0 {
		t.Errorf("persisted counters not cleared: %v", store.counters)
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	store := newMockCounterStore()

	tr := NewTracker(0.002, 0, store)
	tr.Record(1000, 100*time.Millisecond, true)
	tr.Record(1000, 300*time.Millisecond, true)
	tr.RecordFailure()

	// A fresh tracker over the same store picks up the totals.
	tr2 := NewTracker(0.002, 0, store)
	s := tr2.Snapshot()
	if s.TotalQueries != 3 || s.TotalTokens != 2000 {
		t.Errorf("restored snapshot = %+v", s)
	}
	if s.FailedQueries != 1 {
		t.Errorf("restored failed = %d, want 1", s.FailedQueries)
	}
	if s.AvgResponseMs != 200 {
		t.Errorf("restored avg response = %v, want 200", s.AvgResponseMs)
	}
	if s.QualityPassRate != 2.0/3.0 {
		t.Errorf("restored pass rate = %v, want 2/3", s.QualityPassRate)
	}
}

func TestRecord_PersistFailureIsSwallowed(t *testing.T) {
	store := newMockCounterStore()
	store.failSave = true
	tr := NewTracker(0.002, 0, store)

	tr.Record(100, time.Second, true) // must not panic or error

	if s := tr.Snapshot(); s.TotalQueries != 1 {
		t.Errorf("in-memory count lost on persist failure: %+v", s)
	}
}
