package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/amachado/gaceta/internal/chain"
	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/models"
)

type stubOracle struct {
	answer func(req oracle.Request) (string, error)
}

func (o *stubOracle) Generate(ctx context.Context, req oracle.Request) (string, error) {
	return o.answer(req)
}

func (o *stubOracle) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1}, nil
}

type stubMemory struct {
	recent     []models.SummaryRecord
	recentErr  error
	persisted  bool
	persistErr error
	topics     []string
}

func (m *stubMemory) Recent(ctx context.Context, windowDays int) ([]models.SummaryRecord, error) {
	return m.recent, m.recentErr
}

func (m *stubMemory) Persist(ctx context.Context, topics []string, summaryText, contentHash string) (uuid.UUID, error) {
	if m.persistErr != nil {
		return uuid.Nil, m.persistErr
	}
	m.persisted = true
	m.topics = topics
	return uuid.New(), nil
}

type keepAllDedup struct{}

func (keepAllDedup) Apply(ctx context.Context, articles []models.Article) []models.Article {
	return articles
}

type stubFetcher struct {
	text string
	err  error
	// perURL overrides text per URL; missing URLs fail.
	perURL map[string]string
}

func (f *stubFetcher) Extract(ctx context.Context, rawURL string) (string, error) {
	if f.perURL != nil {
		text, ok := f.perURL[rawURL]
		if !ok {
			return "", errors.New("unreachable")
		}
		return text, nil
	}
	return f.text, f.err
}

type recordingDeliverer struct {
	subject string
	body    string
	err     error
}

func (d *recordingDeliverer) Deliver(ctx context.Context, subject, htmlBody string) error {
	if d.err != nil {
		return d.err
	}
	d.subject = subject
	d.body = htmlBody
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func searchChainReturning(articles []models.Article) *chain.Chain[string, []models.Article] {
	return chain.New("search", func(a []models.Article) bool { return len(a) > 0 }, testLogger(),
		chain.Provider[string, []models.Article]{
			Name: "stub",
			Run: func(ctx context.Context, q string) ([]models.Article, error) {
				return articles, nil
			},
		})
}

func exhaustedSearchChain() *chain.Chain[string, []models.Article] {
	return chain.New("search", func(a []models.Article) bool { return len(a) > 0 }, testLogger(),
		chain.Provider[string, []models.Article]{
			Name: "stub",
			Run: func(ctx context.Context, q string) ([]models.Article, error) {
				return nil, errors.New("down")
			},
		})
}

func econChainWith(sig models.EconomicSignal, err error) *chain.Chain[struct{}, models.EconomicSignal] {
	return chain.New("economic_rate", func(s models.EconomicSignal) bool { return !s.Empty() }, testLogger(),
		chain.Provider[struct{}, models.EconomicSignal]{
			Name: "stub",
			Run: func(ctx context.Context, _ struct{}) (models.EconomicSignal, error) {
				return sig, err
			},
		})
}

func trendChainWith(sig models.TrendSignal, err error) *chain.Chain[struct{}, models.TrendSignal] {
	return chain.New("trend_terms", func(s models.TrendSignal) bool { return len(s.Terms) > 0 }, testLogger(),
		chain.Provider[struct{}, models.TrendSignal]{
			Name: "stub",
			Run: func(ctx context.Context, _ struct{}) (models.TrendSignal, error) {
				return sig, err
			},
		})
}

const goodBriefingAnswer = `{"summary_html": "<h1>Hoy</h1>", "topics": ["apagones"]}`

func happyOracle() *stubOracle {
	return &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return `{"queries": ["q1", "q2"]}`, nil
		}
		return goodBriefingAnswer, nil
	}}
}

func TestRun_HappyPath(t *testing.T) {
	mem := &stubMemory{}
	deliv := &recordingDeliverer{}
	p := New(Pipeline{
		Oracle:    happyOracle(),
		Search:    searchChainReturning([]models.Article{{Title: "a", URL: "https://a", Snippet: "s"}}),
		Fetcher:   &stubFetcher{text: "body text"},
		Economic:  econChainWith(models.EconomicSignal{Text: "USD 385", Source: "src"}, nil),
		Trends:    trendChainWith(models.TrendSignal{Terms: []string{"x"}, Source: "s"}, nil),
		Mem:       mem,
		Dedup:     keepAllDedup{},
		Deliverer: deliv,
		Cfg:       Config{TopicDomain: "Cuba", MaxQueries: 2},
		Logger:    testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stage != StagePersisted {
		t.Fatalf("expected StagePersisted, got %s", res.Stage)
	}
	if !res.Persisted || !mem.persisted {
		t.Fatal("expected briefing persisted")
	}
	if !res.Delivered || deliv.body != "<h1>Hoy</h1>" {
		t.Fatalf("expected delivery of the briefing, got %+v", deliv)
	}
	if len(res.Articles) != 1 || res.Articles[0].Text != "body text" {
		t.Fatalf("expected fetched article text, got %+v", res.Articles)
	}
	if res.ContentHash == "" {
		t.Fatal("expected a content hash")
	}
}

func TestRun_QueryGenerationFallsBackToDefaults(t *testing.T) {
	o := &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return "", errors.New("oracle down")
		}
		return goodBriefingAnswer, nil
	}}
	mem := &stubMemory{}
	p := New(Pipeline{
		Oracle:  o,
		Search:  searchChainReturning(nil),
		Fetcher: &stubFetcher{},
		Mem:     mem,
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Queries) != 3 {
		t.Fatalf("expected 3 default queries, got %+v", res.Queries)
	}
	for _, q := range res.Queries {
		if !strings.Contains(q, "Cuba") {
			t.Fatalf("default query should carry the topic domain: %q", q)
		}
	}
}

func TestRun_EmptySearchStillSummarizesAndPersists(t *testing.T) {
	mem := &stubMemory{}
	p := New(Pipeline{
		Oracle:  happyOracle(),
		Search:  exhaustedSearchChain(),
		Fetcher: &stubFetcher{},
		Mem:     mem,
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Fatalf("expected no articles, got %d", len(res.Articles))
	}
	if !res.Persisted {
		t.Fatal("an articleless briefing must still be persisted")
	}
}

func TestRun_SummarizeFailureSkipsPersist(t *testing.T) {
	o := &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return `{"queries": ["q"]}`, nil
		}
		return "", errors.New("model overloaded")
	}}
	mem := &stubMemory{}
	deliv := &recordingDeliverer{}
	p := New(Pipeline{
		Oracle:    o,
		Search:    searchChainReturning([]models.Article{{Title: "a", URL: "https://a"}}),
		Fetcher:   &stubFetcher{},
		Mem:       mem,
		Deliverer: deliv,
		Cfg:       Config{TopicDomain: "Cuba"},
		Logger:    testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mem.persisted || res.Persisted {
		t.Fatal("error edition must not be persisted")
	}
	if !strings.Contains(res.SummaryHTML, "error técnico") {
		t.Fatalf("expected error edition, got %q", res.SummaryHTML)
	}
	if !res.Delivered {
		t.Fatal("error edition should still be delivered")
	}
}

func TestRun_SignalChainsExhaustedYieldPlaceholders(t *testing.T) {
	var prompt string
	o := &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return `{"queries": ["q"]}`, nil
		}
		prompt = req.Prompt
		return goodBriefingAnswer, nil
	}}
	p := New(Pipeline{
		Oracle:   o,
		Search:   searchChainReturning([]models.Article{{Title: "a", URL: "https://a"}}),
		Fetcher:  &stubFetcher{},
		Economic: econChainWith(models.EconomicSignal{}, errors.New("down")),
		Trends:   trendChainWith(models.TrendSignal{}, errors.New("down")),
		Mem:      &stubMemory{},
		Cfg:      Config{TopicDomain: "Cuba"},
		Logger:   testLogger(),
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(prompt, "Exchange-rate data is unavailable") {
		t.Fatal("briefing prompt should declare missing rate data")
	}
	if !strings.Contains(prompt, "Trend data is unavailable") {
		t.Fatal("briefing prompt should declare missing trend data")
	}
}

func TestRun_FetchFailureDropsArticle(t *testing.T) {
	var prompt string
	o := &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return `{"queries": ["q"]}`, nil
		}
		prompt = req.Prompt
		return goodBriefingAnswer, nil
	}}
	p := New(Pipeline{
		Oracle:  o,
		Search:  searchChainReturning([]models.Article{{Title: "unreachable story", URL: "https://a", Snippet: "the snippet"}}),
		Fetcher: &stubFetcher{err: errors.New("timeout")},
		Mem:     &stubMemory{},
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Fatalf("article without text must be dropped, got %d", len(res.Articles))
	}
	if strings.Contains(prompt, "unreachable story") {
		t.Fatal("briefing prompt must not cite a dropped article")
	}
	if res.ContentHash != models.ContentHash(nil) {
		t.Fatal("content hash must be computed over the dropped-down article set")
	}
	if !res.Persisted {
		t.Fatal("run should still persist after dropping unfetched articles")
	}
}

func TestRun_PartialFetchKeepsOnlyFetched(t *testing.T) {
	p := New(Pipeline{
		Oracle: happyOracle(),
		Search: searchChainReturning([]models.Article{
			{Title: "good", URL: "https://good"},
			{Title: "bad", URL: "https://bad"},
		}),
		Fetcher: &stubFetcher{perURL: map[string]string{"https://good": "body"}},
		Mem:     &stubMemory{},
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Articles) != 1 || res.Articles[0].URL != "https://good" {
		t.Fatalf("expected only the fetched article, got %+v", res.Articles)
	}
	if res.ContentHash != models.ContentHash(res.Articles) {
		t.Fatal("content hash must cover exactly the surviving articles")
	}
}

func TestRun_BriefingPromptCarriesRecentTopics(t *testing.T) {
	var prompt string
	o := &stubOracle{answer: func(req oracle.Request) (string, error) {
		if strings.Contains(req.Prompt, "search queries") {
			return `{"queries": ["q"]}`, nil
		}
		prompt = req.Prompt
		return goodBriefingAnswer, nil
	}}
	mem := &stubMemory{recent: []models.SummaryRecord{
		{Topics: []string{"crisis energética", "reforma monetaria"}},
	}}
	p := New(Pipeline{
		Oracle:  o,
		Search:  searchChainReturning([]models.Article{{Title: "a", URL: "https://a"}}),
		Fetcher: &stubFetcher{text: "body"},
		Mem:     mem,
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(prompt, "crisis energética") || !strings.Contains(prompt, "reforma monetaria") {
		t.Fatal("briefing prompt must carry topics from recent editions")
	}
}

func TestRun_PersistFailureIsNotFatal(t *testing.T) {
	mem := &stubMemory{persistErr: errors.New("db down")}
	p := New(Pipeline{
		Oracle:  happyOracle(),
		Search:  searchChainReturning([]models.Article{{Title: "a", URL: "https://a"}}),
		Fetcher: &stubFetcher{},
		Mem:     mem,
		Cfg:     Config{TopicDomain: "Cuba"},
		Logger:  testLogger(),
	})

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Persisted {
		t.Fatal("Persisted should be false when the store fails")
	}
	if res.Stage != StageSummarized {
		t.Fatalf("expected StageSummarized, got %s", res.Stage)
	}
}

func TestTruncateFetched(t *testing.T) {
	long := strings.Repeat("a", maxFetchedChars+100)
	got := truncateFetched(long)
	if !strings.HasSuffix(got, truncationMark) {
		t.Fatal("expected truncation mark")
	}
	if len(got) != maxFetchedChars+len(truncationMark) {
		t.Fatalf("unexpected truncated length %d", len(got))
	}
	short := "short"
	if truncateFetched(short) != short {
		t.Fatal("short text must pass through untouched")
	}
}

func TestTruncateFetched_RuneBoundary(t *testing.T) {
	// Place a two-byte rune across the cut point.
	text := strings.Repeat("a", maxFetchedChars-1) + "áé"
	got := truncateFetched(text)
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if !strings.HasSuffix(got, truncationMark) {
		t.Fatal("expected truncation mark")
	}
}

func TestCapArticle_RuneBoundary(t *testing.T) {
	text := strings.Repeat("a", maxArticleChars-1) + "ñó"
	got := capArticle(text)
	if !utf8.ValidString(got) {
		t.Fatal("cap split a multi-byte rune")
	}
	if len(got) > maxArticleChars {
		t.Fatalf("cap exceeded: %d bytes", len(got))
	}
}
