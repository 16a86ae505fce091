package ingest

import (
	"strings"
	"testing"
)

func TestSplit_KeepsShortParagraphsTogether(t *testing.T) {
	c := NewChunker(1000, 200)

	text := "First paragraph about decision trees.\n\nSecond paragraph about SWOT grids."
	chunks := c.Split(text)

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1: %q", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0], "First paragraph") || !strings.Contains(chunks[0], "Second paragraph") {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplit_BreaksAtParagraphWhenFull(t *testing.T) {
	c := NewChunker(100, 20)

	para := strings.Repeat("abcdefghi ", 7) // 70 chars each
	text := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)
	chunks := c.Split(text)

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(chunks), chunks)
	}
}

func TestSplit_LongParagraphWithOverlap(t *testing.T) {
	c := NewChunker(100, 20)

	// One paragraph well over the chunk size, no sentence boundaries.
	text := strings.Repeat("abcdefghij", 30) // 300 chars
	chunks := c.Split(text)

	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3: lengths %v", len(chunks), chunkLens(chunks))
	}
	for i, ch := range chunks {
		if len(ch) > 100 {
			t.Errorf("chunk %d exceeds size: %d chars", i, len(ch))
		}
	}
	// Consecutive chunks share the overlap region.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("chunk 1 does not start with chunk 0 overlap: %q vs %q", tail, chunks[1][:20])
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	c := NewChunker(100, 20)

	sentence := "This sentence runs for about sixty characters before it ends."
	text := sentence + " " + strings.Repeat("x", 150)
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk should end at a sentence boundary: %q", chunks[0])
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	c := NewChunker(0, 0)

	if chunks := c.Split(""); chunks != nil {
		t.Errorf("Split(\"\") = %v", chunks)
	}
	if chunks := c.Split("   \n\n\t  "); chunks != nil {
		t.Errorf("Split(whitespace) = %v", chunks)
	}
}

func TestSplit_NormalizesCRLF(t *testing.T) {
	c := NewChunker(1000, 200)

	chunks := c.Split("First.\r\n\r\nSecond.")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d: %q", len(chunks), chunks)
	}
	if strings.Contains(chunks[0], "\r") {
		t.Errorf("carriage returns survived: %q", chunks[0])
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, 0)
	if c.chunkChars != 1000 || c.overlapChars != 200 {
		t.Errorf("defaults = %d/%d", c.chunkChars, c.overlapChars)
	}

	// Overlap must stay smaller than the chunk size.
	c = NewChunker(100, 150)
	if c.overlapChars >= c.chunkChars {
		t.Errorf("overlap %d not clamped below chunk size %d", c.overlapChars, c.chunkChars)
	}
}

func chunkLens(chunks []string) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = len(c)
	}
	return out
}
