// Package chain implements an ordered-fallback resolver: a list of providers
// sharing one contract, tried in sequence until one yields an acceptable
// result. Every external signal lookup (search, economic rates, trend terms)
// goes through this package.
package chain

import (
	"context"
	"errors"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrExhausted is returned when every provider failed or produced an
// unacceptable result. Callers must treat it as "no signal available" and
// degrade, never abort.
var ErrExhausted = errors.New("chain: all providers exhausted")

var attempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gaceta_chain_attempts_total",
	Help: "Provider chain attempts by chain, provider and outcome.",
}, []string{"chain", "provider", "outcome"})

// Provider is one named link of a chain. Run errors are absorbed by the
// resolver; they advance the chain instead of propagating.
type Provider[I, O any] struct {
	Name string
	Run  func(ctx context.Context, in I) (O, error)
}

// Chain tries providers in order and returns the first result the accept
// predicate passes.
type Chain[I, O any] struct {
	name      string
	providers []Provider[I, O]
	accept    func(O) bool
	logger    *log.Logger
}

// New builds a chain. The accept predicate decides whether a provider's
// result ends the chain; a rejected result (including the zero value) falls
// through to the next provider.
func New[I, O any](name string, accept func(O) bool, logger *log.Logger, providers ...Provider[I, O]) *Chain[I, O] {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain[I, O]{name: name, accept: accept, logger: logger, providers: providers}
}

// Resolve invokes providers in order and short-circuits on the first
// acceptable result. If no provider produces one it returns the zero value
// and ErrExhausted; it never panics and never returns a provider error.
func (c *Chain[I, O]) Resolve(ctx context.Context, in I) (O, error) {
	var zero O
	for _, p := range c.providers {
		out, err := p.Run(ctx, in)
		switch {
		case err != nil:
			attempts.WithLabelValues(c.name, p.Name, "error").Inc()
			c.logger.Printf("chain %s: provider %s failed: %v", c.name, p.Name, err)
		case !c.accept(out):
			attempts.WithLabelValues(c.name, p.Name, "reject").Inc()
			c.logger.Printf("chain %s: provider %s returned unacceptable result", c.name, p.Name)
		default:
			attempts.WithLabelValues(c.name, p.Name, "accept").Inc()
			c.logger.Printf("chain %s: provider %s accepted", c.name, p.Name)
			return out, nil
		}
	}
	return zero, ErrExhausted
}
