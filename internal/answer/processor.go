package answer

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Sections holds the four canonical parts of a tutor answer. A field is the
// empty string when the model omitted that section; all four keys are always
// present in the serialized form so consumers never check for key presence.
type Sections struct {
	Strategy          string `json:"strategy"`
	Story             string `json:"story"`
	ReflectionPrompts string `json:"reflection_prompts"`
	ToolReferences    string `json:"tool_references"`
}

// Result is the outcome of post-processing one raw model answer.
type Result struct {
	Sections  Sections
	CleanText string   // reassembled answer with headers, after cleanup
	Issues    []string // quality issue tags, empty when the answer is clean
}

// sectionKeys mirrors SectionLabels in order, using the serialized key names.
var sectionKeys = [4]string{KeyStrategy, KeyStory, KeyReflectionPrompts, KeyToolReferences}

// Processor cleans raw model output: splits it into the canonical sections,
// rewrites banned openings, drops sentence fragments, normalizes whitespace
// and inserts paragraph breaks into overlong sections. It carries rotation
// state across calls so consecutive answers don't get the same substitute
// phrasing, and is safe for concurrent use.
type Processor struct {
	readabilityWords int

	mu         sync.Mutex
	lastByIdx  map[int]int // banned pattern index -> last alternative used
	lastGlobal int
}

// NewProcessor creates a Processor. readabilityWords is the word count above
// which a section gets paragraph breaks inserted; <= 0 uses the default (500).
func NewProcessor(readabilityWords int) *Processor {
	if readabilityWords <= 0 {
		readabilityWords = 500
	}
	return &Processor{
		readabilityWords: readabilityWords,
		lastByIdx:        make(map[int]int),
		lastGlobal:       -1,
	}
}

// Process splits raw into sections and applies all cleanup passes. It never
// fails: a malformed answer comes back with empty sections and the
// corresponding issue tags.
func (p *Processor) Process(raw string) Result {
	secs := ExtractSections(raw)

	var issues []string
	repetitive := false

	fields := [...]*string{&secs.Strategy, &secs.Story, &secs.ReflectionPrompts, &secs.ToolReferences}
	for i, field := range fields {
		if strings.TrimSpace(*field) == "" {
			*field = ""
			issues = append(issues, IssueMissingSection+":"+sectionKeys[i])
			continue
		}

		text, replaced := p.rewriteBannedOpenings(*field)
		if replaced > 0 {
			repetitive = true
		}
		text = dropFragments(text)
		text = collapseNoise(text)
		text = insertParagraphBreaks(text, p.readabilityWords)
		*field = strings.TrimSpace(text)
	}

	if repetitive {
		issues = append(issues, IssueRepetitivePhrasing)
	}
	if !mentionsFramework(raw) {
		issues = append(issues, IssueNoNamedFramework)
	}

	return Result{
		Sections:  secs,
		CleanText: renderSections(secs),
		Issues:    issues,
	}
}

// headerLabel reports whether line is a section header, tolerating markdown
// heading markers, bold markers, and a trailing colon in any combination,
// case-insensitively. Returns the canonical label on a match.
func headerLabel(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	s = strings.Trim(s, "*")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, label := range SectionLabels {
		if strings.EqualFold(s, label) {
			return label, true
		}
	}
	return "", false
}

// ExtractSections splits a raw answer into the four canonical sections by
// scanning for header lines. Text before the first recognized header is
// discarded; an unterminated section runs to the end of input.
func ExtractSections(raw string) Sections {
	var secs Sections
	targets := map[string]*string{
		SectionLabels[0]: &secs.Strategy,
		SectionLabels[1]: &secs.Story,
		SectionLabels[2]: &secs.ReflectionPrompts,
		SectionLabels[3]: &secs.ToolReferences,
	}

	var current *string
	for _, line := range strings.Split(raw, "\n") {
		if label, ok := headerLabel(line); ok {
			current = targets[label]
			continue
		}
		if current == nil {
			continue
		}
		if *current != "" {
			*current += "\n"
		}
		*current += line
	}

	secs.Strategy = strings.TrimSpace(secs.Strategy)
	secs.Story = strings.TrimSpace(secs.Story)
	secs.ReflectionPrompts = strings.TrimSpace(secs.ReflectionPrompts)
	secs.ToolReferences = strings.TrimSpace(secs.ToolReferences)
	return secs
}

var bannedRes = func() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(bannedOpenings))
	for i, phrase := range bannedOpenings {
		res[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(phrase))
	}
	return res
}()

// rewriteBannedOpenings replaces every banned opening fragment in text with a
// rotating alternative, preserving the capitalization of the original match.
// Returns the rewritten text and the number of replacements made.
func (p *Processor) rewriteBannedOpenings(text string) (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for i, re := range bannedRes {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			total++
			alt := p.nextAlternative(i)
			if r := []rune(match); len(r) > 0 && unicode.IsUpper(r[0]) {
				alt = capitalize(alt)
			}
			return alt
		})
	}
	return text, total
}

// nextAlternative picks the next substitute for banned pattern idx, advancing
// that pattern's rotation and skipping the globally last-used entry so two
// consecutive replacements never read identically. Caller holds p.mu.
func (p *Processor) nextAlternative(idx int) string {
	next, ok := p.lastByIdx[idx]
	if !ok {
		next = -1
	}
	next = (next + 1) % len(openingAlternatives)
	if next == p.lastGlobal && len(openingAlternatives) > 1 {
		next = (next + 1) % len(openingAlternatives)
	}
	p.lastByIdx[idx] = next
	p.lastGlobal = next
	return openingAlternatives[next]
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// mentionsFramework reports whether text names at least one known decision
// framework, case-insensitively.
func mentionsFramework(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range frameworkTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

const minFragmentWords = 4

// verbLike are common verbs and auxiliaries used by the fragment heuristic.
var verbLike = map[string]bool{
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "am": true, "do": true, "does": true, "did": true,
	"has": true, "have": true, "had": true, "can": true, "could": true,
	"will": true, "would": true, "should": true, "may": true, "might": true,
	"must": true, "use": true, "try": true, "ask": true, "get": true,
	"make": true, "take": true, "need": true, "want": true, "start": true,
	"helps": true, "avoid": true, "consider": true, "weigh": true,
	"list": true, "compare": true, "choose": true, "write": true,
}

// dropFragments removes sentences that are too short to carry meaning: fewer
// than four words with nothing verb-like among them. Lines are processed
// independently so list structure survives.
func dropFragments(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isListItem(trimmed) {
			continue
		}
		var kept []string
		for _, sentence := range splitSentences(line) {
			if isFragment(sentence) {
				continue
			}
			kept = append(kept, sentence)
		}
		lines[i] = strings.Join(kept, " ")
	}
	return strings.Join(lines, "\n")
}

func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return true
	}
	// Numbered items: "1. ..." / "12) ...".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')')
}

func isFragment(sentence string) bool {
	words := strings.Fields(sentence)
	if len(words) >= minFragmentWords {
		return false
	}
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,!?;:*\"'()"))
		if verbLike[w] {
			return false
		}
		if len(w) > 4 && (strings.HasSuffix(w, "ing") || strings.HasSuffix(w, "ed")) {
			return false
		}
	}
	return true
}

// splitSentences breaks text on terminal punctuation, keeping the punctuation
// with its sentence. Single-line input only.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Consume a run of terminators ("...", "?!").
			for i+1 < len(text) && (text[i+1] == '.' || text[i+1] == '!' || text[i+1] == '?') {
				i++
			}
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

var (
	runsOfSpaces  = regexp.MustCompile(`[ \t]{2,}`)
	doubledPunct  = regexp.MustCompile(`([!?,;:])[!?,;:]+`)
	spaceBefore   = regexp.MustCompile(` +([.!?,;:])`)
	tripleNewline = regexp.MustCompile(`\n{3,}`)
)

// collapseNoise normalizes whitespace and doubled punctuation left behind by
// the rewriting passes.
func collapseNoise(text string) string {
	text = runsOfSpaces.ReplaceAllString(text, " ")
	text = doubledPunct.ReplaceAllString(text, "$1")
	text = spaceBefore.ReplaceAllString(text, "$1")
	text = tripleNewline.ReplaceAllString(text, "\n\n")
	return text
}

// insertParagraphBreaks splits text longer than maxWords into paragraphs at
// sentence boundaries, aiming for roughly even paragraph sizes. Text already
// containing blank lines is left alone.
func insertParagraphBreaks(text string, maxWords int) string {
	if strings.Contains(text, "\n\n") || strings.Contains(text, "\n-") {
		return text
	}
	total := len(strings.Fields(text))
	if total <= maxWords {
		return text
	}

	sentences := splitSentences(strings.ReplaceAll(text, "\n", " "))
	parts := total/maxWords + 1
	perPart := total / parts

	var b strings.Builder
	words := 0
	for i, s := range sentences {
		if i > 0 {
			if words >= perPart && i < len(sentences) {
				b.WriteString("\n\n")
				words = 0
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(s)
		words += len(strings.Fields(s))
	}
	return b.String()
}

// renderSections reassembles the cleaned answer as markdown, emitting headers
// only for sections that have content.
func renderSections(secs Sections) string {
	fields := [...]string{secs.Strategy, secs.Story, secs.ReflectionPrompts, secs.ToolReferences}
	var b strings.Builder
	for i, text := range fields {
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("**")
		b.WriteString(SectionLabels[i])
		b.WriteString("**\n")
		b.WriteString(text)
	}
	return b.String()
}
