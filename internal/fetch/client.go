package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/renewables-etl/internal/logging"
)

const (
	DefaultMaxRetries       = 5
	DefaultBackoff          = 1 * time.Second
	DefaultBreakerThreshold = 5

	maxErrorBody = 512
)

// Config bundles HTTP client and resilience settings for one upstream source.
type Config struct {
	// Name identifies the client in logs, metrics and the circuit breaker.
	Name   string
	Client *http.Client

	// MaxRetries bounds the number of retries after a 429. Zero disables retries.
	MaxRetries int
	// Backoff is the fixed delay between rate-limited attempts.
	Backoff time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the breaker.
	BreakerThreshold uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration

	// RateLimit caps outbound requests per second. Zero means unlimited.
	RateLimit float64

	Recorder Recorder
}

// Recorder receives one observation per HTTP attempt.
type Recorder interface {
	ObserveFetch(client, outcome string, d time.Duration)
}

// Outcomes reported to the Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeStatus      = "status_error"
	OutcomeTransport   = "transport_error"
	OutcomeCircuitOpen = "circuit_open"
)

var (
	// ErrRetriesExhausted is returned when every attempt was answered with 429.
	ErrRetriesExhausted = errors.New("rate limited: retries exhausted")
	// ErrCircuitOpen is returned without contacting the upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errRateLimited   = errors.New("rate limited")
	errCancelled     = errors.New("request cancelled")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid fetch configuration")
)

// StatusError represents a non-200, non-429 HTTP response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Client issues GET requests and returns the body as text. It retries on 429
// with a fixed backoff up to MaxRetries times. Safe for concurrent use.
type Client struct {
	name       string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	circuit    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	recorder   Recorder
	logger     *slog.Logger
}

// New validates cfg and builds a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.MaxRetries < 0 || cfg.Backoff < 0 || cfg.RateLimit < 0 {
		return nil, errInvalidConfig
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = DefaultBreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}

	threshold := cfg.BreakerThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[FETCH_BREAKER] circuit breaker state changed",
				"client", name, "from", from.String(), "to", to.String())
		},
	})

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		name:       cfg.Name,
		httpClient: cfg.Client,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		circuit:    cb,
		limiter:    limiter,
		recorder:   cfg.Recorder,
		logger:     logger.With("client", cfg.Name),
	}, nil
}

// countsAsSuccess keeps rate limiting, cancellation and client-side status
// errors from tripping the breaker; only transport failures and 5xx responses count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, errRateLimited) {
		return true
	}
	// Cancellation says nothing about the upstream's health.
	if errors.Is(err, errCancelled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500
	}
	return false
}

// Fetch performs GET rawURL and returns the response body on HTTP 200.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	logURL := Redact(rawURL)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		c.logger.Debug("[FETCH_REQUEST] sending request", "url", logURL, "attempt", attempt+1)

		start := time.Now()
		result, err := c.circuit.Execute(func() (interface{}, error) {
			body, err := c.do(ctx, rawURL, logURL)
			if err != nil && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCancelled, ctx.Err())
			}
			return body, err
		})
		elapsed := time.Since(start)

		if err == nil {
			c.observe(OutcomeOK, elapsed)
			body, ok := result.(string)
			if !ok {
				return "", fmt.Errorf("unexpected result type from circuit breaker")
			}
			c.logger.Info("[FETCH_OK] request succeeded",
				"url", logURL, "attempt", attempt+1, "bytes", len(body))
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe(OutcomeCircuitOpen, elapsed)
			c.logger.Error("[FETCH_FAILED] circuit breaker rejected request", "url", logURL, "error", err)
			return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		if !errors.Is(err, errRateLimited) {
			var se *StatusError
			if errors.As(err, &se) {
				c.observe(OutcomeStatus, elapsed)
			} else {
				c.observe(OutcomeTransport, elapsed)
			}
			c.logger.Error("[FETCH_FAILED] request failed", "url", logURL, "attempt", attempt+1, "error", err)
			return "", err
		}

		c.observe(OutcomeRateLimited, elapsed)
		if attempt >= c.maxRetries {
			c.logger.Error("[FETCH_FAILED] max retries reached", "url", logURL, "attempts", attempt+1)
			return "", fmt.Errorf("%w after %d attempts: %s", ErrRetriesExhausted, attempt+1, logURL)
		}

		c.logger.Warn("[FETCH_RETRY] rate limited, retrying",
			"url", logURL, "retry", attempt+1, "backoff", c.backoff.String())

		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// do runs a single attempt.
func (c *Client) do(ctx context.Context, rawURL, logURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", logURL, stripURL(err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", logURL, stripURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body from %s: %w", logURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return string(body), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", errRateLimited
	default:
		s := string(body)
		if len(s) > maxErrorBody {
			s = s[:maxErrorBody]
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Body: s}
	}
}

// stripURL drops the *url.Error wrapper, which embeds the full URL including the api key.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func (c *Client) observe(outcome string, d time.Duration) {
	if c.recorder != nil {
		c.recorder.ObserveFetch(c.name, outcome, d)
	}
}

// Redact masks the api_key query parameter so URLs can be logged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
