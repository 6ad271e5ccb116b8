package signals

import (
	"context"
	"log"

	"github.com/amachado/gaceta/internal/chain"
	"github.com/amachado/gaceta/models"
)

// TrendProvider is one source of trending terms.
type TrendProvider interface {
	Fetch(ctx context.Context, _ struct{}) (models.TrendSignal, error)
}

// NamedTrendProvider pairs a provider with its chain label.
type NamedTrendProvider struct {
	Name     string
	Provider TrendProvider
}

func acceptTrends(sig models.TrendSignal) bool {
	return len(sig.Terms) > 0
}

// NewTrendChain stacks trend providers into a fallback chain, fastest and
// cheapest first.
func NewTrendChain(logger *log.Logger, named ...NamedTrendProvider) *chain.Chain[struct{}, models.TrendSignal] {
	providers := make([]chain.Provider[struct{}, models.TrendSignal], 0, len(named))
	for _, n := range named {
		providers = append(providers, chain.Provider[struct{}, models.TrendSignal]{
			Name: n.Name,
			Run:  n.Provider.Fetch,
		})
	}
	return chain.New("trend_terms", acceptTrends, logger, providers...)
}
