// Package signals resolves the non-article inputs of a briefing: the
// exchange-rate snapshot and the trending search terms. Both are provider
// chains; the briefing renders a placeholder when a chain is exhausted.
package signals

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/amachado/gaceta/internal/chain"
	"github.com/amachado/gaceta/internal/fetch"
	"github.com/amachado/gaceta/models"
)

// EconomicSource is one configured rate source. Text sources are scraped and
// accepted only when the page actually mentions hard currency; image sources
// download the raw chart bytes for the oracle to read.
type EconomicSource struct {
	Name     string
	URL      string
	ImageURL string
}

// rateMarkers must appear in a scraped page for it to count as a rate quote.
var rateMarkers = []string{"USD", "EUR"}

func acceptEconomic(sig models.EconomicSignal) bool {
	if len(sig.Image) > 0 {
		return true
	}
	return containsAny(sig.Text, rateMarkers...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// NewEconomicChain stacks the configured sources into a fallback chain.
func NewEconomicChain(sources []EconomicSource, fetcher fetch.Fetcher, logger *log.Logger) *chain.Chain[struct{}, models.EconomicSignal] {
	providers := make([]chain.Provider[struct{}, models.EconomicSignal], 0, len(sources))
	for _, src := range sources {
		src := src
		if src.ImageURL != "" {
			providers = append(providers, chain.Provider[struct{}, models.EconomicSignal]{
				Name: src.Name,
				Run: func(ctx context.Context, _ struct{}) (models.EconomicSignal, error) {
					img, err := downloadImage(ctx, src.ImageURL)
					if err != nil {
						return models.EconomicSignal{}, err
					}
					return models.EconomicSignal{Image: img, Source: src.Name}, nil
				},
			})
			continue
		}
		providers = append(providers, chain.Provider[struct{}, models.EconomicSignal]{
			Name: src.Name,
			Run: func(ctx context.Context, _ struct{}) (models.EconomicSignal, error) {
				text, err := fetcher.Extract(ctx, src.URL)
				if err != nil {
					return models.EconomicSignal{}, err
				}
				return models.EconomicSignal{Text: text, Source: src.Name}, nil
			},
		})
	}
	return chain.New("economic_rate", acceptEconomic, logger, providers...)
}

func downloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetch.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty image body from %s", rawURL)
	}
	return body, nil
}
