package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/amachado/gaceta/models"
)

const dailyTrendsURL = "https://trends.google.com/trends/api/dailytrends"

// ErrQuotaExceeded marks a provider that refused to run because its daily
// budget is spent. The chain treats it like any other provider error.
var ErrQuotaExceeded = errors.New("signals: daily quota exceeded")

// Quota gates one provider call. See ratelimit.DailyQuota.
type Quota interface {
	Allow(ctx context.Context) bool
}

// DailyTrends scrapes the unofficial Google Trends daily endpoint. The
// endpoint is undocumented and throttles aggressively, so every call is
// charged against a shared quota first.
type DailyTrends struct {
	Geo   string
	Quota Quota
	// BaseURL overrides the endpoint, used by tests.
	BaseURL string
}

func (d *DailyTrends) Fetch(ctx context.Context, _ struct{}) (models.TrendSignal, error) {
	if d.Quota != nil && !d.Quota.Allow(ctx) {
		return models.TrendSignal{}, ErrQuotaExceeded
	}

	base := d.BaseURL
	if base == "" {
		base = dailyTrendsURL
	}
	url := fmt.Sprintf("%s?hl=es&geo=%s", base, d.Geo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.TrendSignal{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.TrendSignal{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.TrendSignal{}, fmt.Errorf("daily trends: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TrendSignal{}, err
	}
	terms, err := parseDailyTrends(body)
	if err != nil {
		return models.TrendSignal{}, err
	}
	return models.TrendSignal{Terms: terms, Source: "daily_trends"}, nil
}

// parseDailyTrends strips the anti-JSON prefix the endpoint prepends and
// pulls the trending query titles.
func parseDailyTrends(body []byte) ([]string, error) {
	s := strings.TrimPrefix(string(body), ")]}',")
	s = strings.TrimSpace(s)

	var raw struct {
		Default struct {
			TrendingSearchesDays []struct {
				TrendingSearches []struct {
					Title struct {
						Query string `json:"query"`
					} `json:"title"`
				} `json:"trendingSearches"`
			} `json:"trendingSearchesDays"`
		} `json:"default"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parse daily trends: %w", err)
	}

	var terms []string
	for _, day := range raw.Default.TrendingSearchesDays {
		for _, t := range day.TrendingSearches {
			if q := strings.TrimSpace(t.Title.Query); q != "" {
				terms = append(terms, q)
			}
		}
	}
	if len(terms) == 0 {
		return nil, errors.New("daily trends: no terms in response")
	}
	return terms, nil
}
