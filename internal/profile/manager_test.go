package profile

import (
	"errors"
	"testing"
	"time"
)

type mockStore struct {
	keys    map[string]map[string]string
	gets    int
	failGet bool
}

func newMockStore() *mockStore {
	return &mockStore{keys: make(map[string]map[string]string)}
}

func (m *mockStore) SetProfileKey(userID, key, value string) error {
	if m.keys[userID] == nil {
		m.keys[userID] = make(map[string]string)
	}
	m.keys[userID][key] = value
	return nil
}

func (m *mockStore) GetProfileKeys(userID string) (map[string]string, error) {
	m.gets++
	if m.failGet {
		return nil, errors.New("db closed")
	}
	out := make(map[string]string, len(m.keys[userID]))
	for k, v := range m.keys[userID] {
		out[k] = v
	}
	return out, nil
}

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

func (m *mockClock) Advance(d time.Duration) { m.now = m.now.Add(d) }

func strPtr(s string) *string { return &s }

func TestGet_DefaultsForUnknownUser(t *testing.T) {
	m := NewManager(newMockStore())

	p, err := m.Get("nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Role != "helpful tutor" {
		t.Errorf("role = %q", p.Role)
	}
	if p.Tone != "encouraging and clear" {
		t.Errorf("tone = %q", p.Tone)
	}
	if p.ThinkingStyle != "step-by-step reasoning" {
		t.Errorf("thinking style = %q", p.ThinkingStyle)
	}
	if len(p.PreferredFrameworks) != 3 || p.PreferredFrameworks[0] != "decision tree" {
		t.Errorf("frameworks = %v", p.PreferredFrameworks)
	}
}

func TestGet_EmptyUserIDMapsToDefault(t *testing.T) {
	store := newMockStore()
	store.SetProfileKey(DefaultUserID, keyTone, "direct")
	m := NewManager(store)

	p, err := m.Get("")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Tone != "direct" {
		t.Errorf("tone = %q, want stored default-user value", p.Tone)
	}
}

func TestGet_CacheHitWithinTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	m := NewManagerWithClock(store, clock, 60*time.Second)

	if _, err := m.Get("alice"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)
	if _, err := m.Get("alice"); err != nil {
		t.Fatal(err)
	}
	if store.gets != 1 {
		t.Errorf("store reads = %d, want 1 (second Get served from cache)", store.gets)
	}

	clock.Advance(31 * time.Second)
	if _, err := m.Get("alice"); err != nil {
		t.Fatal(err)
	}
	if store.gets != 2 {
		t.Errorf("store reads = %d, want 2 after TTL expiry", store.gets)
	}
}

func TestApply_MergesOverDefaults(t *testing.T) {
	m := NewManager(newMockStore())

	p, err := m.Apply("alice", Update{Tone: strPtr("blunt")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Tone != "blunt" {
		t.Errorf("tone = %q, want %q", p.Tone, "blunt")
	}
	// Untouched fields stay at defaults.
	if p.Role != "helpful tutor" {
		t.Errorf("role = %q, want default preserved", p.Role)
	}

	// A later update does not clobber the first.
	p, err = m.Apply("alice", Update{Role: strPtr("socratic mentor")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if p.Role != "socratic mentor" || p.Tone != "blunt" {
		t.Errorf("profile after second update = %+v", p)
	}
}

func TestApply_InvalidatesCache(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	m := NewManagerWithClock(store, clock, time.Hour)

	if _, err := m.Get("alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Apply("alice", Update{Tone: strPtr("terse")}); err != nil {
		t.Fatal(err)
	}

	p, err := m.Get("alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.Tone != "terse" {
		t.Errorf("stale cache survived Apply: tone = %q", p.Tone)
	}
}

func TestPreferredFrameworksRoundTrip(t *testing.T) {
	m := NewManager(newMockStore())

	want := []string{"premortem analysis", "eisenhower matrix"}
	if _, err := m.Apply("bob", Update{PreferredFrameworks: want}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	p, err := m.Get("bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(p.PreferredFrameworks) != 2 || p.PreferredFrameworks[1] != "eisenhower matrix" {
		t.Errorf("frameworks = %v, want %v", p.PreferredFrameworks, want)
	}
}

func TestGet_MalformedFrameworksSkipped(t *testing.T) {
	store := newMockStore()
	store.SetProfileKey("carol", keyPreferredFrameworks, "not json")
	m := NewManager(store)

	p, err := m.Get("carol")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Falls back to the defaults instead of failing the read.
	if len(p.PreferredFrameworks) != 3 {
		t.Errorf("frameworks = %v, want defaults", p.PreferredFrameworks)
	}
}

func TestGet_StoreError(t *testing.T) {
	store := newMockStore()
	store.failGet = true
	m := NewManager(store)

	if _, err := m.Get("alice"); err == nil {
		t.Error("expected error from failing store")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	m := NewManager(newMockStore())

	p1, _ := m.Get("alice")
	p1.PreferredFrameworks[0] = "mutated"

	p2, _ := m.Get("alice")
	if p2.PreferredFrameworks[0] == "mutated" {
		t.Error("cached profile shares slice with caller")
	}
}
