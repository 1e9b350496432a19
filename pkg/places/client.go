// Package places is a client for the Google Places text-search API, used
// to discover businesses worth approaching as staffing leads.
package places

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

const defaultBaseURL = "https://places.googleapis.com/v1"

// MaxPageSize is the largest page the API serves per request.
const MaxPageSize = 20

// fieldMask selects the place fields the pipeline consumes.
const fieldMask = "places.id,places.displayName,places.formattedAddress,places.websiteUri,places.googleMapsUri,places.types,places.rating,places.userRatingCount"

// Client performs Places API operations.
type Client interface {
	TextSearch(ctx context.Context, query string, pageSize int) (*TextSearchResponse, error)
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	ID               string      `json:"id"`
	DisplayName      DisplayName `json:"displayName"`
	FormattedAddress string      `json:"formattedAddress"`
	WebsiteURI       string      `json:"websiteUri"`
	GoogleMapsURI    string      `json:"googleMapsUri"`
	Types            []string    `json:"types"`
	Rating           float64     `json:"rating"`
	UserRatingCount  int         `json:"userRatingCount"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
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
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Config
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string, pageSize int) (*TextSearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limiter wait")
	}

	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	body, err := json.Marshal(textSearchRequest{TextQuery: query, PageSize: pageSize})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	var result TextSearchResponse
	err = resilience.Do(ctx, c.retry, "places text search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "places: create request")
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", fieldMask)

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "places: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "places: read response")
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientStatus(resp.StatusCode) {
				return resilience.Transient(statusErr, resp.StatusCode)
			}
			return statusErr
		}

		if err := json.Unmarshal(respBody, &result); err != nil {
			return eris.Wrap(err, "places: unmarshal response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
