package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Article is one search hit, optionally enriched with its page text after a
// successful fetch. Identity is the URL; titles are allowed to repeat.
type Article struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Text    string `json:"text,omitempty"`
}

// SummaryRecord is one day's published briefing. Immutable once written.
type SummaryRecord struct {
	ID          uuid.UUID `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Topics      []string  `json:"topics"`
	SummaryText string    `json:"summary_text"`
	ContentHash string    `json:"content_hash"`
}

// TopicEmbedding is a per-topic vector written alongside a SummaryRecord.
// SummaryID is a weak reference: lookup only, no cascade on delete.
type TopicEmbedding struct {
	ID        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Vector    []float32 `json:"vector"`
	Timestamp time.Time `json:"timestamp"`
	SummaryID uuid.UUID `json:"summary_id"`
}

// EconomicSignal carries exchange-rate data from one of the economic sources.
// Exactly one of Text or Image is set by a provider.
type EconomicSignal struct {
	Text   string `json:"text,omitempty"`
	Image  []byte `json:"-"`
	Source string `json:"source"`
}

// Empty reports whether the signal carries no payload at all.
func (s EconomicSignal) Empty() bool {
	return s.Text == "" && len(s.Image) == 0
}

// TrendSignal is a list of trending search terms from one trend provider.
type TrendSignal struct {
	Terms  []string `json:"terms"`
	Source string   `json:"source"`
}

// ContentHash returns the hex sha256 digest over the set of article titles.
// Titles are sorted first so provider ordering does not perturb the
// fingerprint. It is a coarse per-run idempotency marker, not a dedup key.
func ContentHash(articles []Article) string {
	titles := make([]string, 0, len(articles))
	for _, a := range articles {
		titles = append(titles, a.Title)
	}
	sort.Strings(titles)
	h := sha256.New()
	for _, t := range titles {
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DedupByURL keeps the first article seen for each URL, preserving order.
func DedupByURL(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}
