// Package httpapi is a listings source backed by the listings REST API.
//
// Every call passes a local token bucket, then the shared quota tracker when
// one is configured, and is retried on transient failures before the error is
// returned. Quota headers on every response feed the tracker.
package httpapi

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

	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/logging"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/Sternrassler/listings-client/pkg/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept as message.
const maxErrorBody = 512

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, e.g. "https://api.example.com".
	BaseURL string

	// UserAgent header sent with every request (required).
	UserAgent string

	// RequestsPerSecond and Burst configure the local token bucket.
	RequestsPerSecond float64
	Burst             int

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry configures transient failure retries.
	Retry RetryConfig

	// Tracker shares the API quota between processes (optional).
	Tracker *ratelimit.Tracker

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		RequestsPerSecond: 10,
		Burst:             5,
		Timeout:           10 * time.Second,
		Retry:             DefaultRetryConfig(),
	}
}

// Client fetches and deletes listings through the REST API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracker    *ratelimit.Tracker
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests_per_second must be > 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		tracker:    cfg.Tracker,
		baseURL:    base,
		config:     cfg,
		logger:     logging.NewLogger("httpapi"),
	}, nil
}

// FetchPage implements pagination.Source.
func (c *Client) FetchPage(ctx context.Context, q pagination.Query) (pagination.Page[listing.Listing], error) {
	var empty pagination.Page[listing.Listing]
	if err := q.Validate(); err != nil {
		return empty, err
	}

	params, err := EncodeQuery(q)
	if err != nil {
		return empty, err
	}

	var body ListResponse
	err = c.call(ctx, "list", http.MethodGet, ListingsPath, params, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode listings response: %w", err)
		}
		return nil
	})
	if err != nil {
		return empty, err
	}

	c.logger.Debug().
		Str("query", q.Fingerprint()).
		Int("items", len(body.Items)).
		Bool("has_next", body.NextCursor != "").
		Msg("Page fetched")

	return pagination.Page[listing.Listing]{
		Items: body.Items,
		Next:  pagination.Cursor(body.NextCursor),
	}, nil
}

// Delete removes a listing. Unknown ids yield an error matching ErrNotFound.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("listing id is required")
	}
	return c.call(ctx, "delete", http.MethodDelete, ListingsPath+"/"+url.PathEscape(id), nil, nil)
}

// call performs one API operation. handle reads a successful response; the
// body is closed afterwards.
func (c *Client) call(ctx context.Context, op, method, path string, params url.Values, handle func(*http.Response) error) error {
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if c.tracker != nil {
		if err := c.tracker.Wait(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrQuotaExhausted) {
				apiRequestsTotal.WithLabelValues(op, "rate_limited").Inc()
				return &APIError{Class: ErrorClassRateLimit, Message: "local quota gate", Err: err}
			}
			return fmt.Errorf("quota check: %w", err)
		}
	}

	target := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	return retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		return c.attempt(ctx, op, method, target.String(), handle)
	})
}

func (c *Client) attempt(ctx context.Context, op, method, target string, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(op, "network_error").Inc()
		c.logger.Warn().Err(err).Str("operation", op).Msg("HTTP request failed")
		return &APIError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if c.tracker != nil {
		if err := c.tracker.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	apiRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classify(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(class)).Inc()

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    strings.TrimSpace(string(msg)),
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Err = ErrNotFound
		}

		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Listings API error")
		return apiErr
	}

	if handle == nil {
		return nil
	}
	return handle(resp)
}
