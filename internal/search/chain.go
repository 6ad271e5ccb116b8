package search

import (
	"context"
	"log"

	"github.com/amachado/gaceta/internal/chain"
	"github.com/amachado/gaceta/models"
)

// NamedSearcher pairs a searcher with its chain label.
type NamedSearcher struct {
	Name     string
	Searcher Searcher
	K        int
}

// NewChain stacks searchers into a fallback chain resolved once per query.
// A provider that errors or returns nothing yields to the next one.
func NewChain(logger *log.Logger, named ...NamedSearcher) *chain.Chain[string, []models.Article] {
	providers := make([]chain.Provider[string, []models.Article], 0, len(named))
	for _, n := range named {
		n := n
		k := n.K
		if k <= 0 {
			k = 5
		}
		providers = append(providers, chain.Provider[string, []models.Article]{
			Name: n.Name,
			Run: func(ctx context.Context, query string) ([]models.Article, error) {
				return n.Searcher.Search(ctx, query, k)
			},
		})
	}
	return chain.New("search", func(articles []models.Article) bool {
		return len(articles) > 0
	}, logger, providers...)
}
