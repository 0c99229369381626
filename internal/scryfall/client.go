// Package scryfall is the HTTP adapter for the Scryfall API. Client implements
// catalog.Source.
package scryfall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Scryfall API.
const DefaultBaseURL = "https://api.scryfall.com"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Default: DefaultBaseURL
	BaseURL string

	// UserAgent is sent with every request, as Scryfall requires.
	UserAgent string

	// RateLimit is the minimum delay between requests. Default: 100ms (10 req/sec)
	RateLimit time.Duration

	// Timeout bounds JSON requests. Bulk downloads are bounded by the context only.
	Timeout time.Duration

	// MaxRetries is the number of retries after a network error or HTTP 429.
	MaxRetries int

	// InitialBackoff doubles after every retry, up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Logger receives retry warnings. Default: no-op
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      "MTGCatalog/1.0",
		RateLimit:      100 * time.Millisecond,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     16 * time.Second,
	}
}

// Client represents a Scryfall API client with rate limiting.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	bulkClient  *http.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

// NewClient creates a new Scryfall API client. Empty strings and zero
// durations in cfg take their DefaultConfig values.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		bulkClient:  &http.Client{},
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateLimit), 1),
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.InitialBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      cfg.Logger.With(zap.String("component", "scryfall")),
	}
}

// GetSets retrieves the list of all sets.
func (c *Client) GetSets(ctx context.Context) ([]Set, error) {
	var sets []Set
	next := c.baseURL + "/sets"
	for next != "" {
		var page SetList
		if err := c.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to get sets: %w", err)
		}
		sets = append(sets, page.Data...)

		next = ""
		if page.HasMore {
			next = page.NextPage
		}
	}
	return sets, nil
}

// GetSet retrieves set information by set code.
func (c *Client) GetSet(ctx context.Context, code string) (*Set, error) {
	var set Set
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/sets/"+strings.ToLower(code), nil, &set); err != nil {
		return nil, fmt.Errorf("failed to get set %s: %w", code, err)
	}
	return &set, nil
}

// SearchPage fetches one page of search results. Pass an empty pageURL for
// the first page of query; later pages follow SearchResult.NextPage.
func (c *Client) SearchPage(ctx context.Context, query, pageURL string) (*SearchResult, error) {
	if pageURL == "" {
		pageURL = c.baseURL + "/cards/search?" + searchParams(query)
	}

	var result SearchResult
	if err := c.doRequest(ctx, http.MethodGet, pageURL, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search cards with query '%s': %w", query, err)
	}
	return &result, nil
}

// GetBulkData retrieves bulk data download information.
func (c *Client) GetBulkData(ctx context.Context) (*BulkDataList, error) {
	var bulkData BulkDataList
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/bulk-data", nil, &bulkData); err != nil {
		return nil, fmt.Errorf("failed to get bulk data: %w", err)
	}
	return &bulkData, nil
}

// GetCollection fetches up to MaxBatchSize cards by id in one request.
func (c *Client) GetCollection(ctx context.Context, ids []string) (*CollectionResponse, error) {
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("collection request of %d ids exceeds limit of %d", len(ids), MaxBatchSize)
	}

	req := CollectionRequest{Identifiers: make([]CardIdentifier, len(ids))}
	for i, id := range ids {
		req.Identifiers[i] = CardIdentifier{ID: id}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp CollectionResponse
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/cards/collection", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch card collection: %w", err)
	}
	return &resp, nil
}

// openBulkFile starts downloading a bulk file. The caller closes the body.
func (c *Client) openBulkFile(ctx context.Context, downloadURI string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.bulkClient, http.MethodGet, downloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download bulk file: %w", err)
	}
	return resp.Body, nil
}

// doRequest performs a JSON request and decodes the response into result.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	resp, err := c.send(ctx, c.httpClient, method, url, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// send performs a request with rate limiting and retry logic. On success the
// caller owns the response body.
func (c *Client) send(ctx context.Context, client *http.Client, method, url string, body []byte) (*http.Response, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("HTTP request failed: %w", err)
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < c.maxRetries {
				c.logger.Warn("request failed, retrying", zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
				if err := sleep(ctx, backoff); err != nil {
					return nil, err
				}
				backoff = min(backoff*2, c.maxBackoff)
				continue
			}
			break
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, nil

		case http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			if attempt < c.maxRetries {
				wait := backoff
				if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
					wait = time.Duration(secs) * time.Second
				}
				c.logger.Warn("rate limited, retrying", zap.String("url", url), zap.Duration("wait", wait))
				if err := sleep(ctx, wait); err != nil {
					return nil, err
				}
				backoff = min(backoff*2, c.maxBackoff)
				continue
			}

		case http.StatusNotFound:
			_ = resp.Body.Close()
			return nil, &NotFoundError{URL: url}

		default:
			data, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			var apiErr APIError
			if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Details != "" {
				return nil, &apiErr
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
