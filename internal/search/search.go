// Package search finds candidate articles for a query. Providers share one
// interface so the pipeline can stack them in a fallback chain: the grounded
// oracle searcher first, keyword APIs behind it.
package search

import (
	"context"
	"errors"

	"github.com/amachado/gaceta/models"
)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.Article, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("search: unsupported provider")

// NewKeywordSearcher builds one of the keyword-API searchers.
func NewKeywordSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case SerperProvider:
		return &SerperSearch{APIKey: apiKey}, nil
	case BraveProvider:
		return &BraveSearch{APIKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
