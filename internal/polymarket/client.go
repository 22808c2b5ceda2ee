// Package polymarket reads market metadata from the Gamma API and order book
// figures from the public CLOB API.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned for 404 responses, which are never retried.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// ClientConfig configures both API hosts and the shared transport policy.
type ClientConfig struct {
	GammaURL          string        `mapstructure:"gamma_url"`
	ClobURL           string        `mapstructure:"clob_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		GammaURL:          "https://gamma-api.polymarket.com",
		ClobURL:           "https://clob.polymarket.com",
		Timeout:           20 * time.Second,
		MaxRetries:        3,
		BackoffBase:       150 * time.Millisecond,
		RequestsPerSecond: 8,
		Burst:             4,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
	}
}

// Client provides access to the Polymarket APIs. CLOB calls go through a
// circuit breaker so a failing book service stops being hammered for every
// instrument in a cycle.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a new Polymarket client
func NewClient(cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	st := gobreaker.Settings{
		Name:    "clob",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// missing books are a market property, not a service failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	}

	return &Client{
		gammaURL:   strings.TrimRight(cfg.GammaURL, "/"),
		clobURL:    strings.TrimRight(cfg.ClobURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
		maxRetries: retries,
		backoff:    cfg.BackoffBase,
	}
}

// BreakerState reports the CLOB circuit state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// MarketsQuery pages through Gamma /markets.
type MarketsQuery struct {
	Limit     int
	Offset    int
	Order     string
	Ascending bool
}

// Markets fetches one page of raw Gamma markets. Closed and archived markets
// are excluded server side; restriction is left to the caller.
func (c *Client) Markets(ctx context.Context, q MarketsQuery) ([]GammaMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("archived", "false")
	if q.Order != "" {
		params.Set("order", q.Order)
		params.Set("ascending", strconv.FormatBool(q.Ascending))
	}

	var markets []GammaMarket
	if err := c.getJSON(ctx, c.gammaURL+"/markets", params, &markets); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}
	return markets, nil
}

// OrderBook fetches the CLOB book of a token.
func (c *Client) OrderBook(ctx context.Context, tokenID string) (*OrderBook, error) {
	var book OrderBook
	if err := c.clobJSON(ctx, "/book", tokenID, &book); err != nil {
		return nil, fmt.Errorf("failed to fetch book for %s: %w", tokenID, err)
	}
	return &book, nil
}

// Midpoint fetches the CLOB midpoint price of a token.
func (c *Client) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	var resp struct {
		Mid flexFloat `json:"mid"`
	}
	if err := c.clobJSON(ctx, "/midpoint", tokenID, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch midpoint for %s: %w", tokenID, err)
	}
	if resp.Mid.v == nil {
		return 0, fmt.Errorf("midpoint for %s missing from response", tokenID)
	}
	return *resp.Mid.v, nil
}

// Spread fetches the CLOB bid-ask spread of a token.
func (c *Client) Spread(ctx context.Context, tokenID string) (float64, error) {
	var resp struct {
		Spread flexFloat `json:"spread"`
	}
	if err := c.clobJSON(ctx, "/spread", tokenID, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch spread for %s: %w", tokenID, err)
	}
	if resp.Spread.v == nil {
		return 0, fmt.Errorf("spread for %s missing from response", tokenID)
	}
	return *resp.Spread.v, nil
}

func (c *Client) clobJSON(ctx context.Context, path, tokenID string, out any) error {
	params := url.Values{}
	params.Set("token_id", tokenID)
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.getJSON(ctx, c.clobURL+path, params, out)
	})
	return err
}

// getJSON performs a GET with retry and exponential backoff
// (BackoffBase * 2^attempt) and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, base string, params url.Values, out any) error {
	u := base
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<(i-1))):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.doOnce(ctx, u, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
