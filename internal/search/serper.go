package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/amachado/gaceta/models"
)

const serperNewsURL = "https://google.serper.dev/news"

// SerperSearch queries the serper.dev news endpoint.
type SerperSearch struct {
	APIKey string
	// BaseURL overrides the endpoint, used by tests.
	BaseURL string
}

func (s *SerperSearch) Search(ctx context.Context, query string, k int) ([]models.Article, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": query, "num": k}
	body, _ := json.Marshal(payload)

	url := s.BaseURL
	if url == "" {
		url = serperNewsURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		News []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Article
	for i, r := range raw.News {
		if i >= k {
			break
		}
		out = append(out, models.Article{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
