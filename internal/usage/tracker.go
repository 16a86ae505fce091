package usage

import (
	"log/slog"
	"sync"
	"time"
)

// CounterStore persists named counters across restarts.
// Implemented by storage.Store.
type CounterStore interface {
	SaveCounters(counters map[string]float64) error
	LoadCounters() (map[string]float64, error)
	ResetCounters() error
}

// Persisted counter names.
const (
	counterQueries      = "total_queries"
	counterFailed       = "failed_queries"
	counterTokens       = "total_tokens"
	counterCleanAnswers = "clean_answers"
	counterResponseMs   = "total_response_ms"
)

// defaultCleanupEvery is how many queries pass between compactions of the
// per-query response-time window.
const defaultCleanupEvery = 100

// Snapshot is a point-in-time view of usage metrics.
type Snapshot struct {
	TotalQueries        int64   `json:"total_queries"` // successful + failed
	FailedQueries       int64   `json:"failed_queries"`
	TotalTokens         int64   `json:"total_tokens"`
	AvgResponseMs       float64 `json:"avg_response_ms"`        // cumulative, successful requests
	RecentAvgResponseMs float64 `json:"recent_avg_response_ms"` // over the window since the last compaction
	QualityPassRate     float64 `json:"quality_pass_rate"`      // clean answers / all requests
	EstimatedCost       float64 `json:"estimated_cost"`         // USD, tokens × per-1K rate
	AvgTokens           float64 `json:"avg_tokens_per_query"`
}

// Tracker accumulates per-query usage metrics. Every request counts toward
// total_queries; failed requests carry no tokens or response time. Totals
// survive restarts via the optional CounterStore; the response-time window is
// in-memory only and compacted into the cumulative sums every cleanupEvery
// queries. Safe for concurrent use.
type Tracker struct {
	costPer1K    float64
	cleanupEvery int64
	store        CounterStore // may be nil

	mu           sync.Mutex
	queries      int64
	failed       int64
	tokens       int64
	cleanAnswers int64
	responseMs   float64 // sum over all successful queries
	samples      []time.Duration
}

// NewTracker creates a Tracker. cleanupEvery <= 0 uses the default (100);
// store may be nil for purely in-memory tracking; when set, previously
// persisted totals are restored.
func NewTracker(costPer1K float64, cleanupEvery int, store CounterStore) *Tracker {
	if cleanupEvery <= 0 {
		cleanupEvery = defaultCleanupEvery
	}
	t := &Tracker{costPer1K: costPer1K, cleanupEvery: int64(cleanupEvery), store: store}
	if store != nil {
		counters, err := store.LoadCounters()
		if err != nil {
			slog.Warn("could not restore usage counters", "error", err)
			return t
		}
		t.queries = int64(counters[counterQueries])
		t.failed = int64(counters[counterFailed])
		t.tokens = int64(counters[counterTokens])
		t.cleanAnswers = int64(counters[counterCleanAnswers])
		t.responseMs = counters[counterResponseMs]
	}
	return t
}

// Record adds one successfully completed query. clean reports whether the
// answer passed all quality checks. Persistence failures are logged, never
// propagated.
func (t *Tracker) Record(tokens int, elapsed time.Duration, clean bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queries++
	t.tokens += int64(tokens)
	t.responseMs += float64(elapsed.Milliseconds())
	if clean {
		t.cleanAnswers++
	}

	t.samples = append(t.samples, elapsed)
	if t.queries%t.cleanupEvery == 0 {
		// The cumulative sums already carry the aggregate; drop the detail.
		t.samples = nil
	}

	t.persistLocked()
}

// RecordFailure adds one failed query. Failures count toward total_queries
// (and against the pass rate) but contribute no tokens or response time.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queries++
	t.failed++

	t.persistLocked()
}

// Snapshot returns the current metrics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TotalQueries:  t.queries,
		FailedQueries: t.failed,
		TotalTokens:   t.tokens,
		EstimatedCost: float64(t.tokens) / 1000 * t.costPer1K,
	}
	if completed := t.queries - t.failed; completed > 0 {
		s.AvgResponseMs = t.responseMs / float64(completed)
		s.AvgTokens = float64(t.tokens) / float64(completed)
	}
	if t.queries > 0 {
		s.QualityPassRate = float64(t.cleanAnswers) / float64(t.queries)
	}
	if len(t.samples) > 0 {
		var sum float64
		for _, d := range t.samples {
			sum += float64(d.Milliseconds())
		}
		s.RecentAvgResponseMs = sum / float64(len(t.samples))
	}
	return s
}

// Reset zeroes all counters, including persisted ones.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queries = 0
	t.failed = 0
	t.tokens = 0
	t.cleanAnswers = 0
	t.responseMs = 0
	t.samples = nil

	if t.store != nil {
		return t.store.ResetCounters()
	}
	return nil
}

func (t *Tracker) persistLocked() {
	if t.store == nil {
		return
	}
	err := t.store.SaveCounters(map[string]float64{
		counterQueries:      float64(t.queries),
		counterFailed:       float64(t.failed),
		counterTokens:       float64(t.tokens),
		counterCleanAnswers: float64(t.cleanAnswers),
		counterResponseMs:   t.responseMs,
	})
	if err != nil {
		slog.Warn("could not persist usage counters", "error", err)
	}
}
