// Package fetch turns a URL into normalized plain text. The fetcher returns
// the full text; truncation limits are imposed by consumers.
package fetch

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one fetch; on timeout the fetch yields empty
	// text and is not retried.
	DefaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Fetcher extracts readable text from a page. Implementations return an
// empty string (with the causing error) on network failure, non-2xx status
// or timeout; callers drop empty results.
type Fetcher interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// Kind selects the fetcher implementation.
type Kind string

const (
	HTTPKind     Kind = "http"
	ChromedpKind Kind = "chromedp"
)

var ErrUnsupportedFetcher = errors.New("fetch: unsupported fetcher kind")

// NewFetcher builds a fetcher of the given kind. The chromedp variant renders
// JavaScript-heavy pages in a headless browser before extraction.
func NewFetcher(kind Kind, timeout time.Duration) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch kind {
	case HTTPKind, "":
		return &HTTPFetcher{Timeout: timeout}, nil
	case ChromedpKind:
		return &ChromeFetcher{Timeout: timeout}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}

// normalizeText collapses the extracted text: lines are trimmed, blank lines
// dropped, and the remainder joined with single newlines.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.Join(out, "\n")
}
