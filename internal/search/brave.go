package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/amachado/gaceta/models"
)

const braveNewsURL = "https://api.search.brave.com/res/v1/news/search"

// BraveSearch queries the Brave news search API.
type BraveSearch struct {
	APIKey string
	// BaseURL overrides the endpoint, used by tests.
	BaseURL string
}

func (s *BraveSearch) Search(ctx context.Context, query string, k int) ([]models.Article, error) {
	// https://api.search.brave.com/app/documentation/news-search
	base := s.BaseURL
	if base == "" {
		base = braveNewsURL
	}
	endpoint := fmt.Sprintf("%s?q=%s&count=%d", base, url.QueryEscape(query), k)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Article
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.Article{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return out, nil
}
