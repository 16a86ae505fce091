package composer

import (
	"fmt"
	"strings"

	"github.com/tutorstack/tutord/internal/answer"
	"github.com/tutorstack/tutord/internal/profile"
	"github.com/tutorstack/tutord/internal/retrieval"
)

const (
	defaultMaxContextChars = 8000
	defaultBaseMaxTokens   = 1600
)

// Composer assembles the tutor prompt from the user profile, retrieved
// context chunks, and the query, and decides the completion token budget.
type Composer struct {
	maxContextChars int
	baseMaxTokens   int
}

// New creates a Composer. Non-positive arguments fall back to the defaults
// (8000 context chars, 1600 completion tokens).
func New(maxContextChars, baseMaxTokens int) *Composer {
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	if baseMaxTokens <= 0 {
		baseMaxTokens = defaultBaseMaxTokens
	}
	return &Composer{maxContextChars: maxContextChars, baseMaxTokens: baseMaxTokens}
}

// Prompt is a fully assembled prompt plus the metadata the engine records.
type Prompt struct {
	Text          string
	MaxTokens     int
	ContextLength int // chars of retrieved context after truncation
}

// Build assembles the prompt for one query. Chunks arrive ordered by score
// descending; their texts are packed into the context budget with sentence-
// boundary truncation. The completion budget shrinks as the input grows.
func (c *Composer) Build(p profile.Profile, chunks []retrieval.Chunk, query string) Prompt {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	context := TruncateContext(texts, c.maxContextChars)

	var sb strings.Builder
	sb.WriteString(instruction(p, query))
	if context != "" {
		sb.WriteString("\n\nDocument excerpts:\n")
		sb.WriteString(context)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nSynthesized Answer (use the required structure):")

	text := sb.String()
	return Prompt{
		Text:          text,
		MaxTokens:     OptimalTokens(len(query)+len(context), c.baseMaxTokens),
		ContextLength: len(context),
	}
}

// instruction renders the structural and persona instructions for the model.
func instruction(p profile.Profile, query string) string {
	var sb strings.Builder

	sb.WriteString("You are a course-specific AI designed to help students deeply understand decision-making concepts in practice. Structure every answer in four parts, using exactly these headers:\n")
	for _, label := range answer.SectionLabels {
		sb.WriteString("\n**")
		sb.WriteString(label)
		sb.WriteString("**")
	}
	sb.WriteString("\n\nIn Strategy or Explanation, frame tools in terms of the student's situation first, then explain how the tool helps. ")
	sb.WriteString("In Story or Analogy, include a brief, vivid example showing how someone navigated a similar issue. ")
	sb.WriteString("In Reflection Prompts, add 2-3 prompts that challenge assumptions or explore consequences. ")
	sb.WriteString("In Concept/Tool References, list each concept as \"Name: definition\" on its own line, definitions under 50 words.")

	sb.WriteString("\n\nName at least one decision framework explicitly. Never begin a sentence with: ")
	sb.WriteString(strings.Join(answer.BannedOpenings(), "; "))
	sb.WriteString(".")

	fmt.Fprintf(&sb, "\n\nYour role: %s. Tone: %s. Thinking style: %s.",
		p.Role, AdaptTone(query, p.Tone), p.ThinkingStyle)
	if len(p.PreferredFrameworks) > 0 {
		fmt.Fprintf(&sb, " Prefer these frameworks when they fit: %s.",
			strings.Join(p.PreferredFrameworks, ", "))
	}
	sb.WriteString("\nAlways use this structure and do not skip any part.")

	return sb.String()
}

// TruncateContext packs docs into maxChars, separated by "\n\n---\n\n".
// A doc that overflows the remaining budget is cut at the latest sentence
// boundary when one lands past 70% of the budget, otherwise hard-cut with an
// ellipsis. Docs are consumed in the given order.
func TruncateContext(docs []string, maxChars int) string {
	if len(docs) == 0 {
		return ""
	}

	const sep = "\n\n---\n\n"
	var sb strings.Builder
	for _, doc := range docs {
		if doc == "" {
			continue
		}
		remaining := maxChars - sb.Len()
		if sb.Len() > 0 {
			remaining -= len(sep)
		}
		if remaining <= 0 {
			break
		}

		if len(doc) > remaining {
			truncated := doc[:remaining]
			breakPoint := lastSentenceEnd(truncated)
			if float64(breakPoint) > float64(remaining)*0.7 {
				doc = truncated[:breakPoint+1]
			} else {
				doc = truncated + "..."
			}
		}

		if sb.Len() > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(doc)
	}
	return sb.String()
}

func lastSentenceEnd(s string) int {
	best := -1
	for _, end := range []string{".", "!", "?"} {
		if i := strings.LastIndex(s, end); i > best {
			best = i
		}
	}
	return best
}

// OptimalTokens shrinks the completion budget for large inputs so long
// contexts don't produce runaway answers. inputChars is query plus context.
func OptimalTokens(inputChars, baseTokens int) int {
	switch {
	case inputChars > 6000:
		return min(800, baseTokens)
	case inputChars > 3000:
		return min(1200, baseTokens)
	default:
		return baseTokens
	}
}
