// Package opendata fetches substation zone and demand records from an
// Opendatasoft records API.
package opendata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jgoulah/gridheadroom/internal/config"
	"github.com/jgoulah/gridheadroom/internal/zones"
)

// StatusError is a non-2xx response from the records API
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// Retryable reports whether the request is worth repeating
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the records search endpoint
type Client struct {
	baseURL     string
	apiKey      string
	zoneDataset string
	rows        int
	retries     int
	retryDelay  time.Duration
	demand      config.DemandDataset
	loc         *time.Location
	httpClient  *http.Client
}

// New creates a client. Demand timestamps are converted to loc.
func New(cfg config.OpenDataConfig, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:     cfg.GetBaseURL(),
		apiKey:      cfg.APIKey,
		zoneDataset: cfg.GetZoneDataset(),
		rows:        cfg.GetRows(),
		retries:     cfg.GetRetries(),
		retryDelay:  cfg.GetRetryDelay(),
		demand:      cfg.Demand,
		loc:         loc,
		httpClient:  &http.Client{Timeout: cfg.GetTimeout()},
	}
}

type searchResponse struct {
	NHits   int               `json:"nhits"`
	Records []zones.RawRecord `json:"records"`
}

// search runs a records query, retrying network failures, 429 and 5xx
// responses with exponential backoff starting at the configured retry delay.
func (c *Client) search(ctx context.Context, params url.Values) (*searchResponse, error) {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var result *searchResponse
	attempts := 0
	operation := func() error {
		attempts++
		res, retry, err := c.get(ctx, reqURL)
		if err != nil {
			if !retry {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Printf("opendata: retrying %s in %s (%d/%d) after: %v", params.Get("dataset"), wait, attempts, c.retries, err)
	}

	if err := backoff.RetryNotify(operation, c.backOff(ctx), notify); err != nil {
		if attempts > 1 && ctx.Err() == nil {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0 // bounded by retries instead
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)
}

func (c *Client) get(ctx context.Context, reqURL string) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("records API returned status %d: %s", resp.StatusCode, string(body)),
		}
		return nil, statusErr.Retryable(), statusErr
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	return &result, false, nil
}

// IsStatus reports whether err carries the given HTTP status
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
