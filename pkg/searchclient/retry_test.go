package searchclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSearcher struct {
	calls   int
	failN   int
	failErr error
	results []Snippet
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Snippet, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, f.failErr
	}
	return f.results, nil
}

func TestSearchWithRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	fs := &fakeSearcher{failN: 2, failErr: &ProviderError{StatusCode: 503}, results: []Snippet{{URL: "x"}}}
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	got := SearchWithRetry(context.Background(), fs, policy, "query")
	assert.Equal(t, []Snippet{{URL: "x"}}, got)
	assert.Equal(t, 3, fs.calls)
}

func TestSearchWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	fs := &fakeSearcher{failN: 1, failErr: &ProviderError{StatusCode: 400}}
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	got := SearchWithRetry(context.Background(), fs, policy, "query")
	assert.Nil(t, got)
	assert.Equal(t, 1, fs.calls)
}

func TestSearchWithRetry_ExhaustsRetriesReturnsNilNotError(t *testing.T) {
	fs := &fakeSearcher{failN: 100, failErr: &ProviderError{StatusCode: 429}}
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	got := SearchWithRetry(context.Background(), fs, policy, "query")
	assert.Nil(t, got)
	assert.Equal(t, 3, fs.calls)
}

func TestIsRetryable_NetworkErrorWithoutStatusCode(t *testing.T) {
	err := &ProviderError{Err: errors.New("dial tcp: connection timeout")}
	assert.True(t, isRetryable(err))
}

func TestIsRetryable_PlainErrorIsNotClassified(t *testing.T) {
	assert.False(t, isRetryable(errors.New("unexpected EOF")))
}
