package models

import "testing"

func TestContentHash_OrderIndependent(t *testing.T) {
	a := []Article{{Title: "alpha"}, {Title: "beta"}, {Title: "gamma"}}
	b := []Article{{Title: "gamma"}, {Title: "alpha"}, {Title: "beta"}}
	if ContentHash(a) != ContentHash(b) {
		t.Fatal("hash must not depend on article order")
	}
	c := []Article{{Title: "alpha"}, {Title: "beta"}}
	if ContentHash(a) == ContentHash(c) {
		t.Fatal("different title sets must hash differently")
	}
}

func TestDedupByURL(t *testing.T) {
	in := []Article{
		{Title: "one", URL: "https://a"},
		{Title: "two", URL: "https://b"},
		{Title: "one again", URL: "https://a"},
		{Title: "no url"},
	}
	out := DedupByURL(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(out))
	}
	if out[0].Title != "one" || out[1].Title != "two" {
		t.Fatalf("first-seen order not preserved: %+v", out)
	}
}

func TestEconomicSignalEmpty(t *testing.T) {
	if !(EconomicSignal{}).Empty() {
		t.Fatal("zero signal should be empty")
	}
	if (EconomicSignal{Text: "USD 385"}).Empty() {
		t.Fatal("text signal should not be empty")
	}
	if (EconomicSignal{Image: []byte{1}}).Empty() {
		t.Fatal("image signal should not be empty")
	}
}
