package fetch

import (
	"context"
	"fmt"
	"net/http"
	nurl "net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// HTTPFetcher does a plain GET and runs readability extraction over the
// response body.
type HTTPFetcher struct {
	Timeout time.Duration
	// Client overrides the default client, used by tests.
	Client *http.Client
}

func (f *HTTPFetcher) Extract(ctx context.Context, rawURL string) (string, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	u, err := nurl.Parse(rawURL)
	if err != nil {
		u = &nurl.URL{}
	}
	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}
	return normalizeText(article.TextContent), nil
}
