package fetcher

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// backoffPolicy computes jittered exponential backoff delays. Retry state is
// explicit (attempt count in, delay out) so tests never need real sleeps.
type backoffPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func newBackoffPolicy(maxRetries int, base, maxDelay time.Duration) *backoffPolicy {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &backoffPolicy{
		maxRetries: maxRetries,
		baseDelay:  base,
		maxDelay:   maxDelay,
	}
}

// ShouldRetry decides whether the fetch error warrants another attempt.
func (p *backoffPolicy) ShouldRetry(ferr *pipeline.FetchError, attempt int) bool {
	if ferr == nil {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	return ferr.Transient()
}

// Backoff returns the wait duration before the given attempt.
func (p *backoffPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// pauser abstracts how the fetcher waits between attempts.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
