package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultUserID is used when a request carries no user identifier.
const DefaultUserID = "default"

// Stored profile key names.
const (
	keyRole                = "role"
	keyTone                = "tone"
	keyThinkingStyle       = "thinking_style"
	keyPreferredFrameworks = "preferred_frameworks"
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	SetProfileKey(userID, key, value string) error
	GetProfileKeys(userID string) (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  Profile
	cachedAt time.Time
}

// Manager provides cached, structured access to per-user profiles stored in
// SQLite. Reads merge stored overrides over the built-in defaults, so callers
// always get a fully populated Profile.
type Manager struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store Store) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the profile for userID, from cache when fresh. An empty userID
// maps to DefaultUserID. A user with no stored keys gets the defaults.
func (m *Manager) Get(userID string) (Profile, error) {
	userID = normalizeUserID(userID)

	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		p := copyProfile(e.profile)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return copyProfile(e.profile), nil
	}

	keys, err := m.store.GetProfileKeys(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading profile keys for %q: %w", userID, err)
	}

	p := buildProfile(keys)
	m.cache[userID] = cacheEntry{profile: p, cachedAt: m.clock.Now()}
	return copyProfile(p), nil
}

// Apply merges upd into the stored profile for userID and returns the result.
// Only the fields present in upd change; the cache entry is invalidated so
// the next Get reads through to storage.
func (m *Manager) Apply(userID string, upd Update) (Profile, error) {
	userID = normalizeUserID(userID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if upd.Role != nil {
		if err := m.store.SetProfileKey(userID, keyRole, *upd.Role); err != nil {
			return Profile{}, fmt.Errorf("setting role: %w", err)
		}
	}
	if upd.Tone != nil {
		if err := m.store.SetProfileKey(userID, keyTone, *upd.Tone); err != nil {
			return Profile{}, fmt.Errorf("setting tone: %w", err)
		}
	}
	if upd.ThinkingStyle != nil {
		if err := m.store.SetProfileKey(userID, keyThinkingStyle, *upd.ThinkingStyle); err != nil {
			return Profile{}, fmt.Errorf("setting thinking style: %w", err)
		}
	}
	if upd.PreferredFrameworks != nil {
		b, err := json.Marshal(upd.PreferredFrameworks)
		if err != nil {
			return Profile{}, fmt.Errorf("marshalling preferred frameworks: %w", err)
		}
		if err := m.store.SetProfileKey(userID, keyPreferredFrameworks, string(b)); err != nil {
			return Profile{}, fmt.Errorf("setting preferred frameworks: %w", err)
		}
	}

	delete(m.cache, userID)

	keys, err := m.store.GetProfileKeys(userID)
	if err != nil {
		return Profile{}, fmt.Errorf("reloading profile keys for %q: %w", userID, err)
	}
	p := buildProfile(keys)
	m.cache[userID] = cacheEntry{profile: p, cachedAt: m.clock.Now()}
	return copyProfile(p), nil
}

func normalizeUserID(userID string) string {
	if userID == "" {
		return DefaultUserID
	}
	return userID
}

// buildProfile layers stored overrides over the defaults. Malformed JSON in
// the frameworks list is logged and skipped rather than failing the read.
func buildProfile(keys map[string]string) Profile {
	p := Defaults()

	if v, ok := keys[keyRole]; ok && v != "" {
		p.Role = v
	}
	if v, ok := keys[keyTone]; ok && v != "" {
		p.Tone = v
	}
	if v, ok := keys[keyThinkingStyle]; ok && v != "" {
		p.ThinkingStyle = v
	}
	if v, ok := keys[keyPreferredFrameworks]; ok && v != "" {
		var frameworks []string
		if err := json.Unmarshal([]byte(v), &frameworks); err != nil {
			slog.Warn("malformed profile key, skipping", "key", keyPreferredFrameworks, "error", err)
		} else {
			p.PreferredFrameworks = frameworks
		}
	}

	return p
}

func copyProfile(p Profile) Profile {
	cp := p
	if p.PreferredFrameworks != nil {
		cp.PreferredFrameworks = make([]string, len(p.PreferredFrameworks))
		copy(cp.PreferredFrameworks, p.PreferredFrameworks)
	}
	return cp
}
