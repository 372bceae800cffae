// Package textutil provides text normalization applied at ingestion.
package textutil

import (
	"regexp"
	"strings"
)

var (
	urlRE        = regexp.MustCompile(`https?://\S+`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Normalize strips URLs, collapses whitespace, and lowercases the text.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = urlRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(text, " ")

	return strings.ToLower(strings.TrimSpace(text))
}

// Chunk splits items into consecutive chunks of at most size elements.
// A size below 1 yields a single chunk with everything.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		if len(items) == 0 {
			return nil
		}

		return [][]T{items}
	}

	var chunks [][]T

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}

	return chunks
}
