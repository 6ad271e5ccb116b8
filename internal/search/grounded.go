package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/amachado/gaceta/internal/oracle"
	"github.com/amachado/gaceta/models"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// GroundedSearch asks the oracle for recent coverage with search grounding
// enabled and lifts source URLs out of the answer text. It is the preferred
// provider because the oracle already filters for relevance.
type GroundedSearch struct {
	Oracle oracle.Oracle
}

func (s *GroundedSearch) Search(ctx context.Context, query string, k int) ([]models.Article, error) {
	prompt := fmt.Sprintf(
		"Find the most recent news coverage for: %q. "+
			"Summarize the top findings briefly and include the full source URL of every article you cite.",
		query)

	text, err := s.Oracle.Generate(ctx, oracle.Request{Prompt: prompt, Grounded: true})
	if err != nil {
		return nil, fmt.Errorf("grounded search: %w", err)
	}

	urls := urlPattern.FindAllString(text, -1)
	snippet := snippetOf(text)

	var out []models.Article
	seen := make(map[string]bool)
	for _, u := range urls {
		u = strings.TrimRight(u, ".,;")
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, models.Article{Title: query, URL: u, Snippet: snippet})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func snippetOf(text string) string {
	text = strings.TrimSpace(text)
	const max = 300
	if len(text) <= max {
		return text
	}
	n := max
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
