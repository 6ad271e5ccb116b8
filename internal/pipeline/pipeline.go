// Package pipeline runs one briefing end to end: generate queries, search,
// dedup against memory, fetch content, resolve signals, summarize, deliver,
// persist. Every stage after query generation degrades instead of aborting.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amachado/gaceta/internal/chain"
	"github.com/amachado/gaceta/internal/fetch"
	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/models"
)

// Stage marks how far a run progressed.
type Stage string

const (
	StageInit             Stage = "init"
	StageQueriesGenerated Stage = "queries_generated"
	StageSearchResolved   Stage = "search_resolved"
	StageDeduped          Stage = "deduped"
	StageContentFetched   Stage = "content_fetched"
	StageSignalsResolved  Stage = "signals_resolved"
	StageSummarized       Stage = "summarized"
	StagePersisted        Stage = "persisted"
)

// ErrNoQueries is the only fatal pipeline error: with no queries at all
// there is nothing to brief about.
var ErrNoQueries = errors.New("pipeline: no queries available")

var stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gaceta_pipeline_stage_seconds",
	Help:    "Wall time spent per pipeline stage.",
	Buckets: prometheus.ExponentialBuckets(0.1, 3, 8),
}, []string{"stage"})

const maxParallelFetch = 4

// Memory is what the pipeline needs from the long-term store.
type Memory interface {
	Recent(ctx context.Context, windowDays int) ([]models.SummaryRecord, error)
	Persist(ctx context.Context, topics []string, summaryText, contentHash string) (uuid.UUID, error)
}

// Deduper filters already-covered articles.
type Deduper interface {
	Apply(ctx context.Context, articles []models.Article) []models.Article
}

// Deliverer ships the finished briefing. A nil deliverer means persist-only.
type Deliverer interface {
	Deliver(ctx context.Context, subject, htmlBody string) error
}

type Config struct {
	TopicDomain string
	MaxQueries  int
	WindowDays  int
	SearchK     int
}

type Pipeline struct {
	Oracle    oracle.Oracle
	Search    *chain.Chain[string, []models.Article]
	Fetcher   fetch.Fetcher
	Economic  *chain.Chain[struct{}, models.EconomicSignal]
	Trends    *chain.Chain[struct{}, models.TrendSignal]
	Mem       Memory
	Dedup     Deduper
	Deliverer Deliverer
	Cfg       Config
	Logger    *log.Logger
}

// Result is the outcome of one run.
type Result struct {
	RunID       uuid.UUID
	Stage       Stage
	Queries     []string
	Articles    []models.Article
	Economic    models.EconomicSignal
	TrendTerms  models.TrendSignal
	SummaryHTML string
	Topics      []string
	ContentHash string
	Persisted   bool
	Delivered   bool
}

func New(p Pipeline) *Pipeline {
	if p.Cfg.MaxQueries <= 0 {
		p.Cfg.MaxQueries = 3
	}
	if p.Cfg.WindowDays <= 0 {
		p.Cfg.WindowDays = 3
	}
	if p.Logger == nil {
		p.Logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &p
}

// Run executes one briefing. It returns an error only when no queries could
// be produced at all; every other failure degrades and is visible in the
// Result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New(), Stage: StageInit}
	p.Logger.Printf("run %s started", res.RunID)

	recent := p.recentBriefings(ctx)

	queries, err := p.generateQueries(ctx, recent)
	if err != nil {
		return res, err
	}
	res.Queries = queries
	res.Stage = StageQueriesGenerated

	res.Articles = p.searchAll(ctx, queries)
	res.Stage = StageSearchResolved

	if p.Dedup != nil && len(res.Articles) > 0 {
		res.Articles = p.Dedup.Apply(ctx, res.Articles)
	}
	res.Stage = StageDeduped

	p.fetchContent(ctx, res.Articles)
	res.Articles = dropUnfetched(res.Articles)
	res.Stage = StageContentFetched

	res.Economic, res.TrendTerms = p.resolveSignals(ctx)
	res.Stage = StageSignalsResolved

	summaryHTML, topics, sumErr := p.summarize(ctx, res.Articles, res.Economic, res.TrendTerms, recent)
	if sumErr != nil {
		p.Logger.Printf("WARN: summarize failed, publishing error edition: %v", sumErr)
		res.SummaryHTML = errorBriefing(p.Cfg.TopicDomain)
	} else {
		res.SummaryHTML = summaryHTML
		res.Topics = topics
		res.Stage = StageSummarized
	}
	res.ContentHash = models.ContentHash(res.Articles)

	if p.Deliverer != nil {
		subject := fmt.Sprintf("%s: resumen del %s", p.Cfg.TopicDomain, time.Now().Format("2006-01-02"))
		if err := p.Deliverer.Deliver(ctx, subject, res.SummaryHTML); err != nil {
			p.Logger.Printf("WARN: delivery failed: %v", err)
		} else {
			res.Delivered = true
		}
	}

	// An error edition is delivered but never remembered; persisting it
	// would make tomorrow's dedup skip stories that were not actually told.
	if sumErr == nil {
		if _, err := p.Mem.Persist(ctx, res.Topics, res.SummaryHTML, res.ContentHash); err != nil {
			p.Logger.Printf("WARN: persist failed: %v", err)
		} else {
			res.Persisted = true
			res.Stage = StagePersisted
		}
	}

	p.Logger.Printf("run %s finished at stage %s: %d articles, persisted=%t",
		res.RunID, res.Stage, len(res.Articles), res.Persisted)
	return res, nil
}

func (p *Pipeline) recentBriefings(ctx context.Context) []models.SummaryRecord {
	defer observe(StageInit)()
	recent, err := p.Mem.Recent(ctx, p.Cfg.WindowDays)
	if err != nil {
		p.Logger.Printf("WARN: recent briefings unavailable: %v", err)
		return nil
	}
	return recent
}

func (p *Pipeline) generateQueries(ctx context.Context, recent []models.SummaryRecord) ([]string, error) {
	defer observe(StageQueriesGenerated)()

	prompt := queryPrompt(p.Cfg.TopicDomain, p.Cfg.MaxQueries, recent)
	answer, err := p.Oracle.Generate(ctx, oracle.Request{Prompt: prompt})
	if err == nil {
		if queries := parseQueries(answer, p.Cfg.MaxQueries); len(queries) > 0 {
			return queries, nil
		}
		err = errors.New("no usable queries in oracle answer")
	}
	p.Logger.Printf("WARN: query generation failed, using defaults: %v", err)

	queries := DefaultQueries(p.Cfg.TopicDomain)
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	return queries, nil
}

func parseQueries(answer string, max int) []string {
	payload, err := oracle.ExtractJSON(answer)
	if err != nil {
		return nil
	}
	var raw struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}
	var out []string
	for _, q := range raw.Queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

// searchAll resolves the search chain once per query and merges the hits,
// dropping duplicate URLs. A query whose chain is exhausted contributes
// nothing; an empty overall result is legal.
func (p *Pipeline) searchAll(ctx context.Context, queries []string) []models.Article {
	defer observe(StageSearchResolved)()

	var merged []models.Article
	for _, q := range queries {
		articles, err := p.Search.Resolve(ctx, q)
		if err != nil {
			p.Logger.Printf("WARN: search exhausted for query %q", q)
			continue
		}
		merged = append(merged, articles...)
	}
	return models.DedupByURL(merged)
}

// fetchContent fills Article.Text in place with bounded parallelism. A
// failed fetch leaves Text empty; dropUnfetched removes those afterwards.
func (p *Pipeline) fetchContent(ctx context.Context, articles []models.Article) {
	defer observe(StageContentFetched)()

	sem := make(chan struct{}, maxParallelFetch)
	var wg sync.WaitGroup
	for i := range articles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			text, err := p.Fetcher.Extract(ctx, articles[i].URL)
			if err != nil {
				p.Logger.Printf("WARN: fetch failed for %s: %v", articles[i].URL, err)
				return
			}
			articles[i].Text = truncateFetched(text)
		}(i)
	}
	wg.Wait()
}

// dropUnfetched removes articles without extracted text; there is nothing
// to summarize from a bare search hit.
func dropUnfetched(articles []models.Article) []models.Article {
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.Text == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (p *Pipeline) resolveSignals(ctx context.Context) (models.EconomicSignal, models.TrendSignal) {
	defer observe(StageSignalsResolved)()

	var econ models.EconomicSignal
	if p.Economic != nil {
		sig, err := p.Economic.Resolve(ctx, struct{}{})
		if err != nil {
			p.Logger.Printf("WARN: economic chain exhausted, briefing gets placeholder")
		} else {
			econ = sig
		}
	}

	var trends models.TrendSignal
	if p.Trends != nil {
		sig, err := p.Trends.Resolve(ctx, struct{}{})
		if err != nil {
			p.Logger.Printf("WARN: trend chain exhausted, briefing gets placeholder")
		} else {
			trends = sig
		}
	}
	return econ, trends
}

func (p *Pipeline) summarize(ctx context.Context, articles []models.Article, econ models.EconomicSignal, trends models.TrendSignal, recent []models.SummaryRecord) (string, []string, error) {
	defer observe(StageSummarized)()

	req := oracle.Request{
		Prompt: briefingPrompt(p.Cfg.TopicDomain, articles, econ, trends, recent),
		Image:  econ.Image,
	}
	answer, err := p.Oracle.Generate(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("briefing generation: %w", err)
	}

	payload, err := oracle.ExtractJSON(answer)
	if err != nil {
		return "", nil, fmt.Errorf("briefing answer: %w", err)
	}
	var raw struct {
		SummaryHTML string   `json:"summary_html"`
		Topics      []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return "", nil, fmt.Errorf("briefing payload: %w", err)
	}
	if strings.TrimSpace(raw.SummaryHTML) == "" {
		return "", nil, errors.New("briefing payload: empty summary_html")
	}

	topics := raw.Topics
	if topics == nil {
		topics = []string{}
	}
	return raw.SummaryHTML, topics, nil
}

func observe(stage Stage) func() {
	start := time.Now()
	return func() {
		stageSeconds.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}
