package signals

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/amachado/gaceta/models"
)

// TrendsWarehouse reads the public Google Trends dataset in BigQuery. Slower
// and a day behind the live endpoint, but never throttled.
type TrendsWarehouse struct {
	Client      *bigquery.Client
	CountryCode string
	Limit       int
}

func NewTrendsWarehouse(ctx context.Context, projectID, countryCode string, limit int) (*TrendsWarehouse, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}
	return &TrendsWarehouse{Client: client, CountryCode: countryCode, Limit: limit}, nil
}

func (w *TrendsWarehouse) Fetch(ctx context.Context, _ struct{}) (models.TrendSignal, error) {
	q := w.Client.Query(`
		SELECT DISTINCT term
		FROM ` + "`bigquery-public-data.google_trends.international_top_terms`" + `
		WHERE country_code = @country
		  AND refresh_date = (
			SELECT MAX(refresh_date)
			FROM ` + "`bigquery-public-data.google_trends.international_top_terms`" + `
			WHERE country_code = @country
		  )
		ORDER BY term
		LIMIT @lim`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "country", Value: w.CountryCode},
		{Name: "lim", Value: w.Limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return models.TrendSignal{}, fmt.Errorf("query trends warehouse: %w", err)
	}

	var terms []string
	for {
		var row struct {
			Term string `bigquery:"term"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return models.TrendSignal{}, fmt.Errorf("iterate trends warehouse: %w", err)
		}
		if row.Term != "" {
			terms = append(terms, row.Term)
		}
	}
	if len(terms) == 0 {
		return models.TrendSignal{}, errors.New("trends warehouse: no rows for country " + w.CountryCode)
	}
	return models.TrendSignal{Terms: terms, Source: "bigquery_warehouse"}, nil
}
