package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/amachado/gaceta/models"
)

const (
	// maxFetchedChars caps how much page text is kept per article after a
	// fetch; the cut is marked so the model knows the text continues.
	maxFetchedChars = 5000
	truncationMark  = "... [texto truncado]"

	// maxArticleChars caps how much of each article's body makes it into
	// the briefing prompt.
	maxArticleChars = 2000
)

func truncateFetched(text string) string {
	if len(text) <= maxFetchedChars {
		return text
	}
	return cutAtRune(text, maxFetchedChars) + truncationMark
}

func capArticle(text string) string {
	if len(text) <= maxArticleChars {
		return text
	}
	return cutAtRune(text, maxArticleChars)
}

// cutAtRune cuts s to at most n bytes, backing up so a multi-byte rune is
// never split.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// queryPrompt asks for today's search queries as JSON, steering away from
// what recent briefings already covered.
func queryPrompt(topicDomain string, maxQueries int, recent []models.SummaryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You plan news searches about: %s.\n", topicDomain)
	fmt.Fprintf(&b, "Produce %d short search queries for today's most important stories.\n", maxQueries)
	if len(recent) > 0 {
		b.WriteString("\nTopics covered in recent briefings, avoid repeating them unless there are new developments:\n")
		for _, rec := range recent {
			for _, t := range rec.Topics {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
	}
	b.WriteString("\nRespond with JSON only: {\"queries\": [\"...\"]}")
	return b.String()
}

// DefaultQueries is the fallback used when query generation fails.
func DefaultQueries(topicDomain string) []string {
	return []string{
		topicDomain + " noticias hoy",
		topicDomain + " última hora",
		topicDomain + " economía",
	}
}

// briefingPrompt asks for the newsletter HTML plus its topic list as JSON.
// Signals that failed upstream are declared unavailable so the model writes
// the placeholder copy instead of inventing numbers; recent briefings are
// included so follow-ups reference what readers already know.
func briefingPrompt(topicDomain string, articles []models.Article, econ models.EconomicSignal, trends models.TrendSignal, recent []models.SummaryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the editor of a daily email briefing about %s.\n", topicDomain)
	b.WriteString(`Write today's edition as a self-contained HTML fragment with this structure:
1. An "Análisis del editor" box: one paragraph connecting today's stories.
2. A "Top 5" list of the most important stories, each with a one-line takeaway and its source link.
3. A mandatory "Economía" section with the exchange-rate snapshot below. If the snapshot says the data is unavailable, say exactly that; never invent figures.
4. A short footer noting the trending searches of the day.
`)

	b.WriteString("\n== ARTICLES ==\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\n", i+1, a.Title, a.URL)
		if a.Snippet != "" {
			fmt.Fprintf(&b, "Snippet: %s\n", a.Snippet)
		}
		if a.Text != "" {
			fmt.Fprintf(&b, "Body: %s\n", capArticle(a.Text))
		}
	}

	b.WriteString("\n== EXCHANGE RATE SNAPSHOT ==\n")
	switch {
	case len(econ.Image) > 0:
		fmt.Fprintf(&b, "An image with today's rate chart is attached (source: %s). Read the rates from it.\n", econ.Source)
	case econ.Text != "":
		fmt.Fprintf(&b, "Source %s reports:\n%s\n", econ.Source, capArticle(econ.Text))
	default:
		b.WriteString("Exchange-rate data is unavailable today.\n")
	}

	if len(recent) > 0 {
		b.WriteString("\n== PREVIOUSLY COVERED ==\n")
		b.WriteString("Topics from recent editions; frame today's stories as developments, do not re-report them:\n")
		for _, rec := range recent {
			for _, t := range rec.Topics {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
	}

	b.WriteString("\n== TRENDING SEARCHES ==\n")
	if len(trends.Terms) > 0 {
		fmt.Fprintf(&b, "%s (source: %s)\n", strings.Join(trends.Terms, ", "), trends.Source)
	} else {
		b.WriteString("Trend data is unavailable today.\n")
	}

	b.WriteString("\nRespond with JSON only: {\"summary_html\": \"...\", \"topics\": [\"...\"]}\n")
	b.WriteString("topics is the list of story topics the edition covers, one short label per story.")
	return b.String()
}

// errorBriefing is published when summarization itself fails; it is delivered
// but never persisted, so the next run does not treat it as coverage.
func errorBriefing(topicDomain string) string {
	return fmt.Sprintf(
		"<h2>%s</h2><p>La edición de hoy no pudo generarse por un error técnico. Volvemos mañana.</p>",
		topicDomain)
}
