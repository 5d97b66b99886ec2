// Package extractor is the HTTP client for the browser extraction engine: a
// remote service that drives real browser pages and returns structured data
// described by an instruction plus JSON schema. The engine's page lifecycle
// (open, navigate, act, extract, close) maps one-to-one onto this API.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector-cli/internal/resilience"
)

// Default base URL for the extraction engine API.
const defaultBaseURL = "https://extract.sells.group/v1"

// DefaultNavigateTimeout bounds a page navigation when the caller passes zero.
const DefaultNavigateTimeout = 30 * time.Second

// Client defines the extraction engine operations.
type Client interface {
	OpenPage(ctx context.Context) (string, error)
	ClosePage(ctx context.Context, pageID string) error
	Navigate(ctx context.Context, pageID, url string, timeout time.Duration) error
	Act(ctx context.Context, pageID, instruction string) error
	Extract(ctx context.Context, pageID string, req ExtractRequest) (*ExtractResult, error)
}

// ExtractRequest describes what to pull off the current page.
type ExtractRequest struct {
	Instruction string          `json:"instruction"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Limit       int             `json:"limit,omitempty"`
}

// ExtractResult is the engine's structured answer.
type ExtractResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type openPageResponse struct {
	Success bool   `json:"success"`
	PageID  string `json:"pageId"`
}

type statusResponse struct {
	Success bool `json:"success"`
}

type navigateRequest struct {
	URL       string `json:"url"`
	TimeoutMs int64  `json:"timeoutMs,omitempty"`
}

type actRequest struct {
	Instruction string `json:"instruction"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles requests to the engine to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryConfig overrides the default transient-failure retry settings.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitConfig overrides the default circuit breaker settings. The
// transient-only trip check and state logging stay in place unless cfg
// sets its own.
func WithCircuitConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		if cfg.ShouldTrip == nil {
			cfg.ShouldTrip = resilience.IsTransient
		}
		if cfg.OnStateChange == nil {
			cfg.OnStateChange = resilience.StateChangeLogger("extractor")
		}
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a new extraction engine client.
func NewClient(apiKey string, opts ...Option) Client {
	// Only transient failures open the circuit; a 4xx means the request
	// is wrong, not that the engine is down.
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.ShouldTrip = resilience.IsTransient
	breakerCfg.OnStateChange = resilience.StateChangeLogger("extractor")

	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(2, 4),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) OpenPage(ctx context.Context) (string, error) {
	var resp openPageResponse
	if err := c.post(ctx, "/pages", struct{}{}, &resp); err != nil {
		return "", eris.Wrap(err, "extractor: open page")
	}
	if resp.PageID == "" {
		return "", eris.New("extractor: open page: empty page id")
	}
	return resp.PageID, nil
}

func (c *httpClient) ClosePage(ctx context.Context, pageID string) error {
	var resp statusResponse
	if err := c.post(ctx, fmt.Sprintf("/pages/%s/close", pageID), struct{}{}, &resp); err != nil {
		return eris.Wrap(err, fmt.Sprintf("extractor: close page %s", pageID))
	}
	return nil
}

func (c *httpClient) Navigate(ctx context.Context, pageID, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}
	body := navigateRequest{URL: url, TimeoutMs: timeout.Milliseconds()}

	var resp statusResponse
	if err := c.post(ctx, fmt.Sprintf("/pages/%s/navigate", pageID), body, &resp); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if !resp.Success {
		return &NavigationError{URL: url, Err: eris.New("engine reported failure")}
	}
	return nil
}

func (c *httpClient) Act(ctx context.Context, pageID, instruction string) error {
	var resp statusResponse
	if err := c.post(ctx, fmt.Sprintf("/pages/%s/act", pageID), actRequest{Instruction: instruction}, &resp); err != nil {
		return eris.Wrap(err, fmt.Sprintf("extractor: act %q", instruction))
	}
	return nil
}

func (c *httpClient) Extract(ctx context.Context, pageID string, req ExtractRequest) (*ExtractResult, error) {
	var resp ExtractResult
	if err := c.post(ctx, fmt.Sprintf("/pages/%s/extract", pageID), req, &resp); err != nil {
		return nil, &ExtractionError{Instruction: req.Instruction, Err: err}
	}
	if !resp.Success {
		return nil, &ExtractionError{Instruction: req.Instruction, Err: eris.New("engine reported failure")}
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	attempt := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limiter wait")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		return c.do(req, out)
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("extractor", path)

	// Each attempt passes through the breaker, so an open circuit also
	// ends the retry loop: ErrCircuitOpen is not transient.
	return resilience.Do(ctx, retry, func(ctx context.Context) error {
		if c.breaker == nil {
			return attempt(ctx)
		}
		return c.breaker.Execute(ctx, attempt)
	})
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
