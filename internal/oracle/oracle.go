// Package oracle adapts the generative model behind a narrow text-in/text-out
// contract. Callers never see SDK types; they hand over a prompt (optionally
// with an image attachment or grounding enabled) and parse the returned text
// themselves, using ExtractJSON for structured responses.
package oracle

import "context"

// Request is one generation call.
type Request struct {
	Prompt string
	// Image attaches a PNG payload as an extra part (exchange-rate chart).
	Image []byte
	// Grounded enables the live web search tool so answers are backed by
	// current lookups instead of trained knowledge only.
	Grounded bool
}

// Oracle is the semantic oracle consumed by the pipeline, the dedup filter
// and the memory store.
type Oracle interface {
	Generate(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}
