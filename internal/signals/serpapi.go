package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amachado/gaceta/models"
)

const serpapiURL = "https://serpapi.com/search.json"

// SerpAPITrends is the paid last-resort trend provider.
type SerpAPITrends struct {
	APIKey string
	Geo    string
	// BaseURL overrides the endpoint, used by tests.
	BaseURL string
}

func (s *SerpAPITrends) Fetch(ctx context.Context, _ struct{}) (models.TrendSignal, error) {
	base := s.BaseURL
	if base == "" {
		base = serpapiURL
	}
	endpoint := fmt.Sprintf("%s?engine=google_trends_trending_now&geo=%s&api_key=%s",
		base, url.QueryEscape(s.Geo), url.QueryEscape(s.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.TrendSignal{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.TrendSignal{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.TrendSignal{}, fmt.Errorf("serpapi: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		TrendingSearches []struct {
			Query string `json:"query"`
		} `json:"trending_searches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.TrendSignal{}, err
	}

	var terms []string
	for _, t := range raw.TrendingSearches {
		if q := strings.TrimSpace(t.Query); q != "" {
			terms = append(terms, q)
		}
	}
	if len(terms) == 0 {
		return models.TrendSignal{}, errors.New("serpapi: no trending searches in response")
	}
	return models.TrendSignal{Terms: terms, Source: "serpapi"}, nil
}
