package tooltip

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Origin tags for where a tooltip definition came from.
const (
	OriginPrebuilt  = "prebuilt"
	OriginGenerated = "generated"
)

// Tooltip is a short definition of a concept mentioned in an answer.
type Tooltip struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Origin     string `json:"origin"`
}

// Stats counts how many tooltip lookups were served from each origin since
// startup (or the last reset).
type Stats struct {
	Prebuilt  int `json:"prebuilt"`
	Generated int `json:"generated"`
}

// Efficiency is the share of lookups served without spending provider tokens.
func (s Stats) Efficiency() float64 {
	total := s.Prebuilt + s.Generated
	if total == 0 {
		return 0
	}
	return float64(s.Prebuilt) / float64(total)
}

const maxDefinitionWords = 50

// Manager extracts concept tooltips for answers. Known concepts found in the
// answer or retrieval context get the curated prebuilt definition; concepts
// the model defined itself in the references section are kept as generated
// tooltips. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	stats Stats

	conceptRes map[string]*regexp.Regexp // lowercase concept -> boundary matcher
}

// NewManager creates a Manager with the curated concept dictionary.
func NewManager() *Manager {
	m := &Manager{conceptRes: make(map[string]*regexp.Regexp, len(prebuilt))}
	for concept := range prebuilt {
		m.conceptRes[concept] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(concept) + `\b`)
	}
	return m
}

// Extract returns the tooltips for one answer, sorted by display name.
// answer and context are scanned for known concepts; references is the
// answer's Concept/Tool References section, whose "Name: definition" lines
// supply generated tooltips for concepts outside the curated set. Duplicate
// names (case- and whitespace-insensitive) keep the first occurrence, with
// prebuilt definitions always winning.
func (m *Manager) Extract(answer, references, context string) []Tooltip {
	seen := make(map[string]bool)
	var out []Tooltip

	haystack := answer + "\n" + context
	prebuiltHits := 0
	for concept, re := range m.conceptRes {
		if !re.MatchString(haystack) {
			continue
		}
		key := normalizeName(concept)
		if seen[key] {
			continue
		}
		seen[key] = true
		prebuiltHits++
		out = append(out, Tooltip{
			Name:       displayName(concept),
			Definition: CleanDefinition(prebuilt[concept]),
			Origin:     OriginPrebuilt,
		})
	}

	generatedHits := 0
	for _, line := range strings.Split(references, "\n") {
		name, def, ok := parseDefinitionLine(line)
		if !ok {
			continue
		}
		key := normalizeName(name)
		if seen[key] {
			continue
		}
		if _, curated := prebuilt[key]; curated {
			continue // curated definition already added (or concept never mentioned)
		}
		seen[key] = true
		generatedHits++
		out = append(out, Tooltip{
			Name:       displayName(name),
			Definition: CleanDefinition(def),
			Origin:     OriginGenerated,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	m.mu.Lock()
	m.stats.Prebuilt += prebuiltHits
	m.stats.Generated += generatedHits
	m.mu.Unlock()

	return out
}

// Snapshot returns the current origin counters.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Reset zeroes the origin counters.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}

// parseDefinitionLine recognizes reference lines of the forms
// "Name: definition", "**Name**: definition" and "- Name: definition".
// Names longer than six words are rejected as prose, not terms.
func parseDefinitionLine(line string) (name, def string, ok bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "- ")
	s = strings.TrimPrefix(s, "* ")
	s = strings.TrimSpace(s)

	idx := strings.Index(s, ":")
	if idx <= 0 {
		return "", "", false
	}
	name = strings.Trim(strings.TrimSpace(s[:idx]), "*")
	name = strings.TrimSpace(name)
	def = strings.TrimSpace(s[idx+1:])
	if name == "" || def == "" || len(strings.Fields(name)) > 6 {
		return "", "", false
	}
	return name, def, true
}

// normalizeName lowercases and collapses inner whitespace for deduplication.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// displayName title-cases each word of a concept name.
func displayName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// CleanDefinition normalizes a tooltip definition: collapses whitespace,
// truncates to 50 words preferring a late sentence boundary, and guarantees
// terminal punctuation.
func CleanDefinition(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	if len(words) <= maxDefinitionWords {
		out := strings.Join(words, " ")
		if !strings.ContainsAny(out[len(out)-1:], ".!?") {
			out += "."
		}
		return out
	}

	truncated := strings.Join(words[:maxDefinitionWords], " ")

	// Prefer cutting at a sentence boundary if one lands late enough.
	best := -1
	for _, end := range []string{".", "!", "?"} {
		if i := strings.LastIndex(truncated, end); i > best {
			best = i
		}
	}
	if best > 0 && float64(best) > float64(len(truncated))*0.7 {
		return truncated[:best+1]
	}
	return truncated + "..."
}
