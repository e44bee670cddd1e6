package searchclient

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSearcher wraps a Searcher in a circuit breaker so sustained
// provider outages fail fast instead of re-paying the full retry
// ladder on every discovery query once the provider is clearly down.
type BreakerSearcher struct {
	inner   Searcher
	breaker *gobreaker.CircuitBreaker
	policy  RetryPolicy
}

// NewBreakerSearcher wraps inner with a breaker that opens after 5
// consecutive failures and half-opens after 30 seconds to probe
// recovery.
func NewBreakerSearcher(inner Searcher, policy RetryPolicy) *BreakerSearcher {
	settings := gobreaker.Settings{
		Name:    "searchclient",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerSearcher{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		policy:  policy,
	}
}

func (b *BreakerSearcher) Search(ctx context.Context, query string) ([]Snippet, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		snippets := SearchWithRetry(ctx, b.inner, b.policy, query)
		return snippets, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search circuit breaker: %w", err)
	}
	snippets, _ := result.([]Snippet)
	return snippets, nil
}
