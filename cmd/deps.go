package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/amachado/gaceta/config"
	"github.com/amachado/gaceta/internal/dedup"
	"github.com/amachado/gaceta/internal/fetch"
	"github.com/amachado/gaceta/internal/mail"
	"github.com/amachado/gaceta/internal/memory"
	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/internal/pipeline"
	"github.com/amachado/gaceta/internal/ratelimit"
	"github.com/amachado/gaceta/internal/search"
	"github.com/amachado/gaceta/internal/signals"
)

type deps struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	db       *sql.DB
	mailer   *mail.Mailer
}

// buildDeps wires the whole application from config. The caller attaches a
// deliverer afterwards, since run and serve gate sending differently.
func buildDeps(ctx context.Context, cfgPath string) (*deps, error) {
	cfg := config.LoadConfig(cfgPath)

	gem, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
		APIKey:          cfg.Oracle.APIKey,
		Project:         cfg.Oracle.Project,
		Location:        cfg.Oracle.Location,
		GenerativeModel: cfg.Oracle.GenerativeModel,
		EmbeddingModel:  cfg.Oracle.EmbeddingModel,
		EmbeddingDims:   int32(cfg.Oracle.EmbeddingDims),
		Timeout:         cfg.Oracle.Timeout,
	}, log.New(os.Stdout, "[ORACLE] ", log.LstdFlags))
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Storage.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	mem := memory.NewStore(db, gem, log.New(os.Stdout, "[MEMORY] ", log.LstdFlags))
	filter := dedup.NewFilter(mem, gem, cfg.Memory.SimilarityK, log.New(os.Stdout, "[DEDUP] ", log.LstdFlags))

	fetcher, err := fetch.NewFetcher(fetch.Kind(cfg.Fetch.Kind), cfg.Fetch.Timeout)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	searchLogger := log.New(os.Stdout, "[SEARCH] ", log.LstdFlags)
	named := []search.NamedSearcher{
		{Name: "grounded", Searcher: &search.GroundedSearch{Oracle: gem}, K: cfg.Search.ResultsPerQuery},
	}
	if cfg.Search.KeywordAPIKey != "" {
		keyword, err := search.NewKeywordSearcher(search.Provider(cfg.Search.Keyword), cfg.Search.KeywordAPIKey)
		if err != nil {
			return nil, fmt.Errorf("keyword searcher: %w", err)
		}
		named = append(named, search.NamedSearcher{
			Name: cfg.Search.Keyword, Searcher: keyword, K: cfg.Search.ResultsPerQuery,
		})
	}
	searchChain := search.NewChain(searchLogger, named...)

	signalsLogger := log.New(os.Stdout, "[SIGNALS] ", log.LstdFlags)
	var econSources []signals.EconomicSource
	for _, src := range cfg.Signals.EconomicSources {
		econSources = append(econSources, signals.EconomicSource{
			Name: src.Name, URL: src.URL, ImageURL: src.ImageURL,
		})
	}
	econChain := signals.NewEconomicChain(econSources, fetcher, signalsLogger)

	var trendProviders []signals.NamedTrendProvider
	var quota signals.Quota
	if cfg.Storage.Redis.Addr != "" {
		rdb, err := ratelimit.Conn(ctx, cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, cfg.Storage.Redis.Timeout)
		if err != nil {
			// Trends degrade to the warehouse when the quota store is down.
			signalsLogger.Printf("WARN: redis unavailable, live trends disabled: %v", err)
		} else {
			quota = ratelimit.NewDailyQuota(rdb, "gaceta:trends", cfg.Signals.Trends.DailyQuota)
		}
	}
	if quota != nil {
		trendProviders = append(trendProviders, signals.NamedTrendProvider{
			Name: "daily_trends", Provider: &signals.DailyTrends{Geo: cfg.Signals.Trends.Geo, Quota: quota},
		})
	}
	if cfg.Signals.Trends.BigQueryProject != "" {
		warehouse, err := signals.NewTrendsWarehouse(ctx, cfg.Signals.Trends.BigQueryProject, cfg.Signals.Trends.Geo, 10)
		if err != nil {
			signalsLogger.Printf("WARN: trends warehouse unavailable: %v", err)
		} else {
			trendProviders = append(trendProviders, signals.NamedTrendProvider{
				Name: "bigquery_warehouse", Provider: warehouse,
			})
		}
	}
	if cfg.Signals.Trends.SerpAPIKey != "" {
		trendProviders = append(trendProviders, signals.NamedTrendProvider{
			Name: "serpapi", Provider: &signals.SerpAPITrends{APIKey: cfg.Signals.Trends.SerpAPIKey, Geo: cfg.Signals.Trends.Geo},
		})
	}
	trendChain := signals.NewTrendChain(signalsLogger, trendProviders...)

	p := pipeline.New(pipeline.Pipeline{
		Oracle:   gem,
		Search:   searchChain,
		Fetcher:  fetcher,
		Economic: econChain,
		Trends:   trendChain,
		Mem:      mem,
		Dedup:    filter,
		Cfg: pipeline.Config{
			TopicDomain: cfg.General.TopicDomain,
			MaxQueries:  cfg.Memory.MaxQueries,
			WindowDays:  cfg.Memory.WindowDays,
			SearchK:     cfg.Search.ResultsPerQuery,
		},
		Logger: log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags),
	})

	var mailer *mail.Mailer
	if cfg.Delivery.SMTPHost != "" {
		mailer = mail.NewMailer(mail.Config{
			Host:     cfg.Delivery.SMTPHost,
			Port:     cfg.Delivery.SMTPPort,
			Username: cfg.Delivery.Username,
			Password: cfg.Delivery.Password,
			From:     cfg.Delivery.From,
		})
	}

	return &deps{cfg: cfg, pipeline: p, db: db, mailer: mailer}, nil
}

func (d *deps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
}
