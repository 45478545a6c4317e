// Package sanity provides a read-only GROQ query client for the Sanity
// content API.
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/nirman-site/internal/logger"
)

// Defaults for the site's content project.
const (
	DefaultProjectID  = "z1g1o05i"
	DefaultDataset    = "production"
	DefaultAPIVersion = "2025-12-11"
	DefaultTimeout    = 15 * time.Second
)

// DefaultUserAgent is sent with every query.
const DefaultUserAgent = "nirman-site/1.0"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// ErrNoResult is returned by Query when the query matched nothing.
var ErrNoResult = errors.New("sanity: no result")

// Config configures a Client.
type Config struct {
	ProjectID  string        `yaml:"project_id" env:"SANITY_PROJECT_ID" validate:"required"`
	Dataset    string        `yaml:"dataset" env:"SANITY_DATASET" validate:"required"`
	APIVersion string        `yaml:"api_version" env:"SANITY_API_VERSION" validate:"required"`
	UseCDN     bool          `yaml:"use_cdn" env:"SANITY_USE_CDN"`
	Token      string        `yaml:"token" env:"SANITY_TOKEN"`
	Timeout    time.Duration `yaml:"timeout" env:"SANITY_TIMEOUT"`
	// BaseURL replaces the project API host. Used by tests and proxies.
	BaseURL string `yaml:"base_url" env:"SANITY_BASE_URL"`
}

// DefaultConfig returns the configuration the site ships with.
func DefaultConfig() Config {
	return Config{
		ProjectID:  DefaultProjectID,
		Dataset:    DefaultDataset,
		APIVersion: DefaultAPIVersion,
		Timeout:    DefaultTimeout,
	}
}

// Error represents a failed query.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sanity query error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("sanity query error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient: network errors,
// rate limiting and server errors.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Cause != nil && !errors.Is(e.Cause, context.Canceled) && !errors.Is(e.Cause, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client queries one dataset. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      RetryConfig
	log        logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry replaces the retry policy.
func WithRetry(rc RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// New creates a Client. Empty config fields fall back to DefaultConfig.
func New(cfg Config, log logger.Logger, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.ProjectID == "" {
		cfg.ProjectID = def.ProjectID
	}
	if cfg.Dataset == "" {
		cfg.Dataset = def.Dataset
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      DefaultRetryConfig(),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Endpoint returns the query endpoint for the configured dataset.
func (c *Client) Endpoint() string {
	base := c.cfg.BaseURL
	if base == "" {
		host := "api.sanity.io"
		if c.cfg.UseCDN {
			host = "apicdn.sanity.io"
		}
		base = "https://" + c.cfg.ProjectID + "." + host
	}
	version := strings.TrimPrefix(c.cfg.APIVersion, "v")
	return strings.TrimRight(base, "/") + "/v" + version + "/data/query/" + url.PathEscape(c.cfg.Dataset)
}

// Query runs a GROQ query and decodes its result into out. Params are
// bound as $name variables. A null result leaves out untouched and
// returns ErrNoResult. Transient failures are retried.
func (c *Client) Query(ctx context.Context, query string, params map[string]any, out any) error {
	reqURL, err := c.queryURL(query, params)
	if err != nil {
		return err
	}

	start := time.Now()
	var raw json.RawMessage
	err = Retry(ctx, c.retry, func() error {
		var qerr error
		raw, qerr = c.do(ctx, reqURL)
		return qerr
	})
	c.log.Debug("sanity query",
		logger.String("dataset", c.cfg.Dataset),
		logger.Duration("duration", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrNoResult
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &Error{URL: reqURL, Message: "failed to decode result", Cause: err}
	}
	return nil
}

func (c *Client) queryURL(query string, params map[string]any) (string, error) {
	values := url.Values{}
	values.Set("query", query)

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		encoded, err := json.Marshal(params[name])
		if err != nil {
			return "", &Error{
				URL:     c.Endpoint(),
				Message: fmt.Sprintf("failed to encode param %q", name),
				Cause:   err,
			}
		}
		values.Set("$"+strings.TrimPrefix(name, "$"), string(encoded))
	}
	return c.Endpoint() + "?" + values.Encode(), nil
}

type queryResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, reqURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{URL: reqURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: reqURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{URL: reqURL, Message: "failed to read response body", Cause: err, StatusCode: resp.StatusCode}
	}

	var qr queryResponse
	decodeErr := json.Unmarshal(body, &qr)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("HTTP status %d", resp.StatusCode)
		if decodeErr == nil && qr.Error != nil && qr.Error.Description != "" {
			msg += ": " + qr.Error.Description
		}
		return nil, &Error{URL: reqURL, Message: msg, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return nil, &Error{URL: reqURL, Message: "malformed response", StatusCode: resp.StatusCode, Cause: decodeErr}
	}
	return qr.Result, nil
}
