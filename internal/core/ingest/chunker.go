package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var spaceRuns = regexp.MustCompile(` +`)

// Chunker splits normalized text into fixed-size overlapping windows.
// Windows are measured in runes so multi-byte scripts are never cut
// mid-character.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window geometry. overlap must be strictly smaller
// than size, otherwise the start pointer would stop advancing.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got size=%d overlap=%d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split normalizes whitespace and cuts the text into windows of size runes,
// each sharing overlap runes with its predecessor. Empty slices are dropped.
// Deterministic and order-preserving.
func (c *Chunker) Split(input string) []string {
	text := []rune(normalizeWhitespace(input))
	if len(text) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		slice := strings.TrimSpace(string(text[start:end]))
		if slice != "" {
			chunks = append(chunks, slice)
		}
	}
	return chunks
}

// normalizeWhitespace unifies line endings, turns tabs into spaces, collapses
// space runs and trims the ends.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", " ")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
