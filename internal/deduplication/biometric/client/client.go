// Package client talks to the external biometric deduplication engine.
//
// The engine exposes one workspace ("deduplication set") per program. Images
// are uploaded in bulk, matching runs asynchronously after a process call and
// its findings are read back as scored pairs.
//
// Retries live here and only here: transient failures (network errors, 429
// and 5xx) are retried with exponential backoff while the circuit breaker is
// closed. Once the breaker opens every call gets a single attempt until the
// engine answers successfully again.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"hope/internal/platform/metrics"
	"hope/pkg/platform/circuit"
)

// Config is injected by the caller; the client reads no process settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	// InitialBackoff is the first retry delay, doubled on each attempt.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// APIError is the single failure type of every engine operation. StatusCode
// is zero when no HTTP response was received.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("deduplication engine %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("deduplication engine %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the HTTP status carried by an APIError in err's chain.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Image is one upload entry: the reference the engine reports back in
// findings and the URL it fetches the image from.
type Image struct {
	ReferenceID string `json:"reference_pk"`
	ImageURL    string `json:"filename"`
}

// Finding is a scored pair of references the engine considers similar.
type Finding struct {
	First  string
	Second string
	Score  float64
}

type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	cfg     Config
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New validates cfg and builds a client. Zero durations fall back to a 30s
// timeout and a 200ms..5s backoff.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("deduplication engine base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("deduplication engine API key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse deduplication engine base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		breaker: circuit.New("deduplication-engine"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createSetRequest struct {
	Name        string `json:"name"`
	ReferenceID string `json:"reference_pk"`
}

type createSetResponse struct {
	ID string `json:"id"`
}

// CreateDeduplicationSet allocates a workspace and returns its ID.
func (c *Client) CreateDeduplicationSet(ctx context.Context, name, referenceID string) (string, error) {
	const op = "create_set"
	var out createSetResponse
	_, err := c.do(ctx, op, http.MethodPost, "deduplication_sets/", createSetRequest{Name: name, ReferenceID: referenceID}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &APIError{Op: op, StatusCode: http.StatusOK, Err: errors.New("response carries no set id")}
	}
	return out.ID, nil
}

// BulkUploadImages sends every image of a batch in one request.
func (c *Client) BulkUploadImages(ctx context.Context, setID string, images []Image) error {
	_, err := c.do(ctx, "upload_images", http.MethodPost, setPath(setID, "images_bulk/"), images, nil)
	return err
}

// ProcessDeduplication starts matching. The status code is returned for every
// HTTP answer; non-2xx answers also return an *APIError.
func (c *Client) ProcessDeduplication(ctx context.Context, setID string) (int, error) {
	return c.do(ctx, "process", http.MethodPost, setPath(setID, "process/"), nil, nil)
}

// DeleteDeduplicationSet removes the workspace. A 404 comes back as an
// *APIError like any other failure.
func (c *Client) DeleteDeduplicationSet(ctx context.Context, setID string) error {
	_, err := c.do(ctx, "delete_set", http.MethodDelete, setPath(setID, ""), nil, nil)
	return err
}

type findingResponse struct {
	First struct {
		ReferenceID string `json:"reference_pk"`
	} `json:"first"`
	Second struct {
		ReferenceID string `json:"reference_pk"`
	} `json:"second"`
	Score float64 `json:"score"`
}

// GetDuplicates returns the findings of the last finished run.
func (c *Client) GetDuplicates(ctx context.Context, setID string) ([]Finding, error) {
	var raw []findingResponse
	if _, err := c.do(ctx, "get_duplicates", http.MethodGet, setPath(setID, "duplicates/"), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Finding, 0, len(raw))
	for _, f := range raw {
		out = append(out, Finding{First: f.First.ReferenceID, Second: f.Second.ReferenceID, Score: f.Score})
	}
	return out, nil
}

func setPath(setID, suffix string) string {
	return "deduplication_sets/" + url.PathEscape(setID) + "/" + suffix
}

// do sends one logical request, retrying transient failures, and decodes a
// 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
	}
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path}).String()

	start := time.Now()
	var status int
	attempt := func() error {
		var err error
		status, err = c.send(ctx, op, method, endpoint, payload, out)
		if err != nil && !retryable(ctx, status) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(attempt, c.policy(ctx), func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "retrying deduplication engine call",
			"operation", op,
			"status", status,
			"wait", wait,
			"error", err,
		)
	})
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		err = &APIError{Op: op, StatusCode: status, Err: err}
	}
	c.metrics.ObserveExternalCall(op, err, time.Since(start))
	c.record(ctx, err)
	return status, err
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	if c.breaker.IsOpen() || c.cfg.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialBackoff
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.MaxRetries), ctx)
}

func (c *Client) send(ctx context.Context, op, method, endpoint string, payload []byte, out any) (int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, &APIError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &APIError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.StatusCode, nil
}

// retryable reports whether a failed attempt may be repeated: network errors
// and 429/5xx answers, never after the caller gave up.
func retryable(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	}
	return false
}

// record feeds the breaker. Client errors (4xx) mean the engine is up and do
// not count as failures.
func (c *Client) record(ctx context.Context, err error) {
	status := StatusCodeOf(err)
	if err == nil || (status >= 400 && status < 500 && status != http.StatusTooManyRequests) {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "deduplication engine circuit closed", "breaker", c.breaker.Name())
		}
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "deduplication engine circuit opened, retries disabled",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}
