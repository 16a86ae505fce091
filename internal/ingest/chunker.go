package ingest

import (
	"fmt"
	"os"
	"strings"
)

const (
	defaultChunkChars   = 1000
	defaultOverlapChars = 200
)

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Chunker splits document text into overlapping chunks sized for embedding.
// Paragraph boundaries are preferred; a paragraph larger than the chunk size
// is split at sentence boundaries with a character overlap between pieces.
type Chunker struct {
	chunkChars   int
	overlapChars int
}

// NewChunker creates a Chunker. Non-positive arguments use the defaults
// (1000-char chunks, 200-char overlap).
func NewChunker(chunkChars, overlapChars int) *Chunker {
	if chunkChars <= 0 {
		chunkChars = defaultChunkChars
	}
	if overlapChars <= 0 || overlapChars >= chunkChars {
		overlapChars = defaultOverlapChars
		if overlapChars >= chunkChars {
			overlapChars = chunkChars / 5
		}
	}
	return &Chunker{chunkChars: chunkChars, overlapChars: overlapChars}
}

// Split returns the chunks of text in document order. Whitespace-only input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if len(para) > c.chunkChars {
			flush()
			chunks = append(chunks, c.splitLong(para)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > c.chunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitLong cuts an oversized paragraph into chunk-sized pieces at sentence
// boundaries where possible, carrying overlapChars of trailing context into
// the next piece.
func (c *Chunker) splitLong(para string) []string {
	var chunks []string
	for len(para) > c.chunkChars {
		cut := c.chunkChars
		if i := lastSentenceEnd(para[:cut]); i > c.chunkChars/2 {
			cut = i + 1
		}
		chunks = append(chunks, strings.TrimSpace(para[:cut]))

		// Carry overlap into the next piece, but always make forward progress.
		restart := cut - c.overlapChars
		if restart <= 0 {
			restart = cut
		}
		para = para[restart:]
	}
	if s := strings.TrimSpace(para); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
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
