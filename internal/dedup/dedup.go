// Package dedup drops articles that re-tell stories covered by recent
// briefings. Similarity is semantic: the candidate is embedded, compared
// against stored topic vectors, and an oracle arbitrates ambiguous matches.
package dedup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/models"
)

// Memory is the similarity lookup the filter needs. NearestTopics degrades
// to an empty slice on failure, never an error.
type Memory interface {
	NearestTopics(ctx context.Context, query string, k int) []string
}

var verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gaceta_dedup_verdicts_total",
	Help: "Dedup verdicts by outcome.",
}, []string{"outcome"})

const defaultWorkers = 4

type Filter struct {
	Mem     Memory
	Oracle  oracle.Oracle
	K       int
	Workers int
	Logger  *log.Logger
}

func NewFilter(mem Memory, o oracle.Oracle, k int, logger *log.Logger) *Filter {
	if k <= 0 {
		k = 3
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[DEDUP] ", log.LstdFlags)
	}
	return &Filter{Mem: mem, Oracle: o, K: k, Workers: defaultWorkers, Logger: logger}
}

// Apply returns the articles judged novel, preserving input order. Every
// failure mode keeps the article: missing coverage is worse than a repeat.
func (f *Filter) Apply(ctx context.Context, articles []models.Article) []models.Article {
	if len(articles) == 0 {
		return nil
	}

	workers := f.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	novel := make([]bool, len(articles))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, a := range articles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, a models.Article) {
			defer wg.Done()
			defer func() { <-sem }()
			novel[i] = f.isNovel(ctx, a)
		}(i, a)
	}
	wg.Wait()

	out := make([]models.Article, 0, len(articles))
	for i, a := range articles {
		if novel[i] {
			out = append(out, a)
		}
	}
	return out
}

func (f *Filter) isNovel(ctx context.Context, a models.Article) bool {
	topics := f.Mem.NearestTopics(ctx, a.Title, f.K)
	if len(topics) == 0 {
		verdicts.WithLabelValues("novel_no_matches").Inc()
		return true
	}

	prompt := arbitrationPrompt(a, topics)
	answer, err := f.Oracle.Generate(ctx, oracle.Request{Prompt: prompt})
	if err != nil {
		f.Logger.Printf("WARN: arbitration failed for %q, keeping article: %v", a.Title, err)
		verdicts.WithLabelValues("novel_failopen").Inc()
		return true
	}

	// REDUNDANT does not contain the token NEW, so a substring check on the
	// uppercased answer is unambiguous.
	if strings.Contains(strings.ToUpper(answer), "NEW") {
		verdicts.WithLabelValues("novel").Inc()
		return true
	}
	verdicts.WithLabelValues("redundant").Inc()
	return false
}

func arbitrationPrompt(a models.Article, topics []string) string {
	var b strings.Builder
	b.WriteString("You judge whether a news story has already been covered.\n\n")
	fmt.Fprintf(&b, "Candidate story:\nTitle: %s\nSummary: %s\n\n", a.Title, a.Snippet)
	b.WriteString("Topics already covered in recent briefings:\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("\nIs the candidate a NEW story or a REPEAT of a covered topic? " +
		"A follow-up with genuinely new developments counts as NEW. " +
		"Answer with exactly one word: NEW or REDUNDANT.")
	return b.String()
}
