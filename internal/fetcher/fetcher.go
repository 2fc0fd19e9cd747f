// Package fetcher implements the rate-limited, retrying HTTP fetcher on top
// of the Colly collector.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/metrics"
	"github.com/jobsight/jobsight/internal/pipeline"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	PerHostDelay   time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Fetcher implements pipeline.Fetcher using a Colly collector per request.
// The only shared mutable state is the per-host rate-limit token.
type Fetcher struct {
	cfg           Config
	limiter       *hostLimiter
	backoff       *backoffPolicy
	pause         pauser
	baseCollector *colly.Collector
	clock         pipeline.Clock
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, clock pipeline.Clock, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       newHostLimiter(cfg.PerHostDelay),
		backoff:       newBackoffPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		pause:         timerPauser{},
		baseCollector: c,
		clock:         clock,
		logger:        logger,
	}
}

// Fetch retrieves the target, retrying transient failures with jittered
// backoff until the retry budget is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, target pipeline.Target) (pipeline.RawPayload, error) {
	var lastErr *pipeline.FetchError
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx, target.URL); err != nil {
			return pipeline.RawPayload{}, &pipeline.FetchError{
				Kind: pipeline.FetchConnection,
				URL:  target.URL,
				Err:  err,
			}
		}

		payload, ferr := f.fetchOnce(ctx, target)
		if ferr == nil {
			return payload, nil
		}
		lastErr = ferr

		if !f.backoff.ShouldRetry(ferr, attempt) {
			break
		}
		delay := f.backoff.Backoff(attempt)
		metrics.RecordFetchRetry()
		f.logger.Debug("fetch retry",
			zap.String("url", target.URL),
			zap.String("kind", string(ferr.Kind)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
		)
		f.pause.Pause(ctx, delay)
		if ctx.Err() != nil {
			break
		}
	}
	return pipeline.RawPayload{}, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, target pipeline.Target) (pipeline.RawPayload, *pipeline.FetchError) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		payload    pipeline.RawPayload
		statusCode int
		respErr    error
	)

	collector.OnResponse(func(r *colly.Response) {
		payload = pipeline.RawPayload{
			Source:     target.Source,
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			FetchedAt:  f.clock.Now(),
		}
		statusCode = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		respErr = err
	})

	visitErr := f.runCollector(ctx, collector, target.URL)

	switch {
	case visitErr != nil:
		return pipeline.RawPayload{}, classify(target.URL, statusCode, visitErr)
	case respErr != nil:
		return pipeline.RawPayload{}, classify(target.URL, statusCode, respErr)
	}
	return payload, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

// classify maps a transport or HTTP failure onto the fetch error taxonomy.
func classify(url string, statusCode int, err error) *pipeline.FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden:
		return &pipeline.FetchError{Kind: pipeline.FetchBlocked, URL: url, StatusCode: statusCode, Err: err}
	case statusCode >= 400:
		return &pipeline.FetchError{Kind: pipeline.FetchHTTPStatus, URL: url, StatusCode: statusCode, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &pipeline.FetchError{Kind: pipeline.FetchTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &pipeline.FetchError{Kind: pipeline.FetchTimeout, URL: url, Err: err}
	}
	return &pipeline.FetchError{Kind: pipeline.FetchConnection, URL: url, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
