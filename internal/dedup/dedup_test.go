package dedup

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/models"
)

type stubMemory struct {
	topics map[string][]string
}

func (m *stubMemory) NearestTopics(ctx context.Context, query string, k int) []string {
	for probe, topics := range m.topics {
		if strings.Contains(query, probe) {
			return topics
		}
	}
	return nil
}

type stubOracle struct {
	answer func(prompt string) (string, error)
}

func (o *stubOracle) Generate(ctx context.Context, req oracle.Request) (string, error) {
	return o.answer(req.Prompt)
}

func (o *stubOracle) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestApply_NoMatchesMeansNovel(t *testing.T) {
	f := NewFilter(&stubMemory{}, &stubOracle{answer: func(string) (string, error) {
		t.Fatal("oracle must not be consulted without matches")
		return "", nil
	}}, 3, testLogger())

	in := []models.Article{{Title: "fresh story", URL: "https://a"}}
	out := f.Apply(context.Background(), in)
	if len(out) != 1 {
		t.Fatalf("expected article kept, got %d", len(out))
	}
}

func TestApply_RedundantDropped(t *testing.T) {
	mem := &stubMemory{topics: map[string][]string{"blackout": {"power outages"}}}
	f := NewFilter(mem, &stubOracle{answer: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "power outages") {
			t.Errorf("prompt missing matched topic: %s", prompt)
		}
		return "REDUNDANT", nil
	}}, 3, testLogger())

	in := []models.Article{
		{Title: "blackout continues", URL: "https://a"},
		{Title: "new hospital opens", URL: "https://b"},
	}
	out := f.Apply(context.Background(), in)
	if len(out) != 1 || out[0].URL != "https://b" {
		t.Fatalf("expected only the unmatched article, got %+v", out)
	}
}

func TestApply_VerdictNewKept(t *testing.T) {
	mem := &stubMemory{topics: map[string][]string{"blackout": {"power outages"}}}
	f := NewFilter(mem, &stubOracle{answer: func(string) (string, error) {
		return "NEW", nil
	}}, 3, testLogger())

	out := f.Apply(context.Background(), []models.Article{{Title: "blackout worsens", URL: "https://a"}})
	if len(out) != 1 {
		t.Fatalf("expected article kept on NEW verdict, got %d", len(out))
	}
}

func TestApply_OracleFailureKeepsArticle(t *testing.T) {
	mem := &stubMemory{topics: map[string][]string{"blackout": {"power outages"}}}
	f := NewFilter(mem, &stubOracle{answer: func(string) (string, error) {
		return "", errors.New("quota")
	}}, 3, testLogger())

	out := f.Apply(context.Background(), []models.Article{{Title: "blackout worsens", URL: "https://a"}})
	if len(out) != 1 {
		t.Fatalf("fail-open violated: got %d articles", len(out))
	}
}

type recordingMemory struct {
	queries []string
}

func (m *recordingMemory) NearestTopics(ctx context.Context, query string, k int) []string {
	m.queries = append(m.queries, query)
	return nil
}

func TestApply_ProbesWithTitleOnly(t *testing.T) {
	mem := &recordingMemory{}
	f := NewFilter(mem, &stubOracle{answer: func(string) (string, error) {
		return "NEW", nil
	}}, 3, testLogger())
	f.Workers = 1

	f.Apply(context.Background(), []models.Article{
		{Title: "apagones en oriente", Snippet: "long snippet that must not leak into the lookup", URL: "https://a"},
	})
	if len(mem.queries) != 1 || mem.queries[0] != "apagones en oriente" {
		t.Fatalf("similarity lookup must use the title alone, got %+v", mem.queries)
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	mem := &stubMemory{topics: map[string][]string{"dup": {"already covered"}}}
	f := NewFilter(mem, &stubOracle{answer: func(string) (string, error) {
		return "REDUNDANT", nil
	}}, 3, testLogger())

	in := []models.Article{
		{Title: "first", URL: "https://1"},
		{Title: "dup story", URL: "https://2"},
		{Title: "second", URL: "https://3"},
		{Title: "third", URL: "https://4"},
	}
	out := f.Apply(context.Background(), in)
	want := []string{"https://1", "https://3", "https://4"}
	if len(out) != len(want) {
		t.Fatalf("expected %d articles, got %d", len(want), len(out))
	}
	for i, u := range want {
		if out[i].URL != u {
			t.Fatalf("order not preserved at %d: got %s want %s", i, out[i].URL, u)
		}
	}
}
