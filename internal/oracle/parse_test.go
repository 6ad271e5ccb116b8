package oracle

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	got, err := ExtractJSON(`{"queries": ["a", "b"]}`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("unmarshal extracted JSON: %v", err)
	}
	if len(parsed.Queries) != 2 {
		t.Fatalf("expected 2 queries, got %v", parsed.Queries)
	}
}

func TestExtractJSON_FencedWithLanguageTag(t *testing.T) {
	in := "Here you go:\n```json\n{\"topics\": [\"energy\"]}\n```\nanything else"
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"topics": ["energy"]}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSON_LeadingProse(t *testing.T) {
	in := `Sure! The answer is {"verdict": "NEW"} as requested.`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"verdict": "NEW"}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	in := `{"summary_html": "<div>{not json}</div>", "topics": []}`
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != in {
		t.Fatalf("expected whole object back, got %q", got)
	}
}

func TestExtractJSON_NoPayload(t *testing.T) {
	_, err := ExtractJSON("the model refused to answer")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestExtractJSON_UnterminatedFenceFallsThrough(t *testing.T) {
	in := "```json\n{\"k\": 1}"
	got, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"k": 1}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}
