package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// Classifier maps an HTTP status to a failure class. Factored out so the
// downloader's classification rules live in one testable place.
type Classifier func(status int) domain.FailureClass

// userAgents is the pool rotated across retry attempts
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// ResilientClient is the shared retrying HTTP fetcher: bounded per-request
// timeout, exponential backoff with jitter between attempts, and a
// rotated User-Agent per attempt.
type ResilientClient struct {
	client     *http.Client
	classify   Classifier
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	log        *zap.Logger
	attempt    atomic.Uint64 // global rotation cursor for User-Agent strings
	jitter     func(max time.Duration) time.Duration
}

// ResilientClientConfig configures a ResilientClient
type ResilientClientConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
	Classify   Classifier
}

// NewResilientClient creates a resilient fetcher over the given client.
// A nil classify treats every non-2xx status as transient.
func NewResilientClient(client *http.Client, cfg ResilientClientConfig, log *zap.Logger) *ResilientClient {
	if client == nil {
		client = &http.Client{}
	}
	classify := cfg.Classify
	if classify == nil {
		classify = func(int) domain.FailureClass { return domain.FailureTransient }
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ResilientClient{
		client:     client,
		classify:   classify,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		timeout:    cfg.Timeout,
		log:        log,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Fetch retrieves the URL with the configured retry budget. On failure it
// returns a *domain.SegmentFetchError carrying the classification of the
// last attempt; a cancelled context short-circuits retries.
func (c *ResilientClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr *domain.SegmentFetchError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter before each retry.
			delay := c.baseDelay << (attempt - 1)
			delay += c.jitter(delay / 2)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &domain.SegmentFetchError{
					Class:    domain.FailureCancelled,
					Attempts: attempt,
					Err:      ctx.Err(),
				}
			}
		}

		body, ferr := c.fetchOnce(ctx, rawURL)
		if ferr == nil {
			return body, nil
		}
		ferr.Attempts = attempt + 1
		lastErr = ferr

		// Cancellation and copyright blocks are not worth retrying.
		if ferr.Class == domain.FailureCancelled || ferr.Class == domain.FailureBlocked {
			return nil, ferr
		}

		if c.log != nil {
			c.log.Debug("fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Int("status", ferr.StatusCode),
				zap.Error(ferr.Err))
		}
	}

	return nil, lastErr
}

func (c *ResilientClient) fetchOnce(ctx context.Context, rawURL string) ([]byte, *domain.SegmentFetchError) {
	// Hard cap per request so a hung connection cannot stall the batch.
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.SegmentFetchError{Class: domain.FailureTransient, Err: err}
	}
	req.Header.Set("User-Agent", c.nextUserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.SegmentFetchError{Class: domain.FailureCancelled, Err: ctx.Err()}
		}
		// Includes the per-request timeout, treated like a network failure.
		return nil, &domain.SegmentFetchError{Class: domain.FailureTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.SegmentFetchError{
			Class:      c.classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.SegmentFetchError{Class: domain.FailureCancelled, Err: ctx.Err()}
		}
		return nil, &domain.SegmentFetchError{Class: domain.FailureTransient, Err: err}
	}
	return body, nil
}

func (c *ResilientClient) nextUserAgent() string {
	n := c.attempt.Add(1)
	return userAgents[int(n)%len(userAgents)]
}

// IsCancellation reports whether err is a propagated cancellation
func IsCancellation(err error) bool {
	var ferr *domain.SegmentFetchError
	if errors.As(err, &ferr) {
		return ferr.Class == domain.FailureCancelled
	}
	return errors.Is(err, context.Canceled)
}
