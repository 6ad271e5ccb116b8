// Package memory is the long-term store behind deduplication: published
// briefings plus per-topic embedding vectors in Postgres with pgvector.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amachado/gaceta/models"
)

// Embedder turns text into a vector. The oracle adapter satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var searchFailOpen = promauto.NewCounter(prometheus.CounterOpts{
	Name: "gaceta_memory_search_failopen_total",
	Help: "Similarity searches that failed and were treated as no matches.",
})

type Store struct {
	DB     *sql.DB
	Emb    Embedder
	Logger *log.Logger
}

func NewStore(db *sql.DB, emb Embedder, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.Writer(), "[MEMORY] ", log.LstdFlags)
	}
	return &Store{DB: db, Emb: emb, Logger: logger}
}

// Recent returns the briefings published inside the recency window, newest
// first.
func (s *Store) Recent(ctx context.Context, windowDays int) ([]models.SummaryRecord, error) {
	if windowDays <= 0 {
		windowDays = 3
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, created_at, topics, summary_text, content_hash
FROM summaries
WHERE created_at >= NOW() - $1 * INTERVAL '1 day'
ORDER BY created_at DESC
`, windowDays)
	if err != nil {
		return nil, fmt.Errorf("query recent summaries: %w", err)
	}
	defer rows.Close()

	var out []models.SummaryRecord
	for rows.Next() {
		var rec models.SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, pq.Array(&rec.Topics), &rec.SummaryText, &rec.ContentHash); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NearestTopics returns the k stored topic labels closest to the query text
// by cosine distance. Any failure, embedding or SQL, degrades to an empty
// result: a miss here means a briefing may repeat a story, which beats
// blocking the run on a flaky similarity lookup.
func (s *Store) NearestTopics(ctx context.Context, query string, k int) []string {
	if k <= 0 {
		k = 3
	}
	vec, err := s.Emb.Embed(ctx, query)
	if err != nil {
		s.Logger.Printf("WARN: embed for similarity search failed, treating as no matches: %v", err)
		searchFailOpen.Inc()
		return nil
	}
	literal, err := encodeVectorLiteral(vec)
	if err != nil {
		s.Logger.Printf("WARN: encode query vector: %v", err)
		searchFailOpen.Inc()
		return nil
	}

	rows, err := s.DB.QueryContext(ctx, `
SELECT topic
FROM topic_embeddings
ORDER BY embedding <=> $1::vector
LIMIT $2
`, literal, k)
	if err != nil {
		s.Logger.Printf("WARN: similarity search failed, treating as no matches: %v", err)
		searchFailOpen.Inc()
		return nil
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			s.Logger.Printf("WARN: scan similarity row: %v", err)
			searchFailOpen.Inc()
			return nil
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		s.Logger.Printf("WARN: similarity rows: %v", err)
		searchFailOpen.Inc()
		return nil
	}
	return topics
}

// Persist writes the briefing record first, then one embedding per topic.
// The summary insert is the only hard failure; each embedding is best-effort
// and independent, so a mid-flight crash can leave topics without vectors
// but never a vector without its summary.
func (s *Store) Persist(ctx context.Context, topics []string, summaryText, contentHash string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.DB.ExecContext(ctx, `
INSERT INTO summaries (id, created_at, topics, summary_text, content_hash)
VALUES ($1, $2, $3, $4, $5)
`, id, now, pq.Array(topics), summaryText, contentHash)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert summary: %w", err)
	}

	for _, topic := range topics {
		if err := s.persistTopicEmbedding(ctx, id, topic); err != nil {
			s.Logger.Printf("WARN: topic embedding for %q not stored: %v", topic, err)
		}
	}
	return id, nil
}

func (s *Store) persistTopicEmbedding(ctx context.Context, summaryID uuid.UUID, topic string) error {
	vec, err := s.Emb.Embed(ctx, topic)
	if err != nil {
		return fmt.Errorf("embed topic: %w", err)
	}
	literal, err := encodeVectorLiteral(vec)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO topic_embeddings (id, topic, embedding, created_at, summary_id)
VALUES ($1, $2, $3::vector, $4, $5)
`, uuid.New(), topic, literal, time.Now().UTC(), summaryID)
	if err != nil {
		return fmt.Errorf("insert topic embedding: %w", err)
	}
	return nil
}
