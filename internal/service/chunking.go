package service

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/cloo-solutions/crawlvec/internal/domain"
)

// Request defaults applied when a field is omitted.
const (
	DefaultChunkSize = 1000
	DefaultMaxDepth  = 1
	DefaultNResults  = 5
)

// ChunkText splits text into consecutive windows of size code points.
// The last window may be shorter. Windows that are blank after trimming are
// dropped; kept windows are returned verbatim.
func ChunkText(text string, size int) []string {
	if size <= 0 || text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		window := string(runes[start:end])
		if isBlank(window) {
			continue
		}
		chunks = append(chunks, window)
	}
	return chunks
}

// isBlank reports whether s holds only whitespace. The ASCII information
// separators U+001C..U+001F count as whitespace too.
func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsSpace(r) && (r < 0x1c || r > 0x1f)
	}) < 0
}

// BuildChunks chunks text and assigns ids, positions and totals for sourceURL.
// Indexes count kept chunks only, so they are always 0..n-1.
func BuildChunks(sourceURL, text string, size int) []domain.Chunk {
	windows := ChunkText(text, size)
	chunks := make([]domain.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = domain.Chunk{
			ID:        domain.ChunkID(sourceURL, i),
			SourceURL: sourceURL,
			Text:      w,
			Index:     i,
			Total:     len(windows),
		}
	}
	return chunks
}

// NormalizeURL validates raw as an absolute http(s) URL and returns its
// canonical string form. An empty path becomes "/". Query and fragment are
// kept, so they are part of every chunk id.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", domain.ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", domain.ErrInvalidURL
	}
	if u.Host == "" {
		return "", domain.ErrInvalidURL
	}

	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
