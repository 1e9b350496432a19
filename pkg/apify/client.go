// Package apify is a minimal client for the Apify actor-run API, used as
// the scraping backend for sources without an official API.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rekrytera/signals-cli/internal/resilience"
)

const defaultBaseURL = "https://api.apify.com/v2"

// Client runs Apify actors and returns their dataset items.
type Client interface {
	RunActorSync(ctx context.Context, actorID string, input any) ([]json.RawMessage, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithRetryConfig overrides the default transient-failure retry policy.
func WithRetryConfig(rc resilience.Config) Option {
	return func(c *httpClient) {
		c.retry = rc
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Config
}

// NewClient creates an Apify client. Actor runs are slow, so the default
// timeout is generous; override it with WithHTTPClient when needed.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
		limiter: rate.NewLimiter(1, 2),
		retry:   resilience.DefaultConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RunActorSync starts an actor run with the given input, waits for it to
// finish, and returns the items it pushed to its default dataset.
func (c *httpClient) RunActorSync(ctx context.Context, actorID string, input any) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "apify: rate limiter wait")
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "apify: marshal actor input")
	}

	url := c.baseURL + "/acts/" + actorID + "/run-sync-get-dataset-items"

	var items []json.RawMessage
	err = resilience.Do(ctx, c.retry, "apify run actor", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "apify: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrapf(err, "apify: run actor %s", actorID)
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "apify: read response")
		}

		// run-sync-get-dataset-items answers 201 on a fresh run.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			statusErr := eris.Errorf("apify: actor %s returned status %d: %s", actorID, resp.StatusCode, string(respBody))
			if resilience.IsTransientStatus(resp.StatusCode) {
				return resilience.Transient(statusErr, resp.StatusCode)
			}
			return statusErr
		}

		if err := json.Unmarshal(respBody, &items); err != nil {
			return eris.Wrap(err, "apify: unmarshal dataset items")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}
