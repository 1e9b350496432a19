// Package jobtech is a client for the JobTech Jobsearch API, the public
// search interface over Platsbanken job ads.
package jobtech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rekrytera/signals-cli/internal/resilience"
)

const defaultBaseURL = "https://jobsearch.api.jobtechdev.se"

// MaxPageSize is the largest page the API serves per request.
const MaxPageSize = 100

// Client performs Jobsearch API operations.
type Client interface {
	Search(ctx context.Context, params SearchParams) (*SearchResponse, error)
}

// SearchParams are the query parameters for a search page.
type SearchParams struct {
	Query  string
	Offset int
	Limit  int
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Total Total `json:"total"`
	Hits  []Ad  `json:"hits"`
}

// Total carries the total hit count for the query.
type Total struct {
	Value int `json:"value"`
}

// Ad is a single Platsbanken job ad.
type Ad struct {
	ID                 string             `json:"id"`
	Headline           string             `json:"headline"`
	WebpageURL         string             `json:"webpage_url"`
	PublicationDate    string             `json:"publication_date"`
	Description        Description        `json:"description"`
	Employer           Employer           `json:"employer"`
	WorkplaceAddress   WorkplaceAddress   `json:"workplace_address"`
	ApplicationDetails ApplicationDetails `json:"application_details"`
	EmploymentType     Concept            `json:"employment_type"`
	SalaryType         Concept            `json:"salary_type"`
	SalaryDescription  string             `json:"salary_description"`
}

// Concept is the API's taxonomy value wrapper.
type Concept struct {
	Label string `json:"label"`
}

// Description holds the ad body.
type Description struct {
	Text string `json:"text"`
}

// Employer identifies the hiring organization.
type Employer struct {
	Name      string `json:"name"`
	Workplace string `json:"workplace"`
}

// WorkplaceAddress locates the position.
type WorkplaceAddress struct {
	Municipality string `json:"municipality"`
	Region       string `json:"region"`
}

// ApplicationDetails holds how to apply.
type ApplicationDetails struct {
	Email string `json:"email"`
	URL   string `json:"url"`
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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Config
}

// NewClient creates a Jobsearch API client. The API is open and needs no
// credentials.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(2, 4),
		retry:   resilience.DefaultConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "jobtech: rate limiter wait")
	}

	limit := params.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := url.Values{}
	q.Set("q", params.Query)
	q.Set("offset", strconv.Itoa(params.Offset))
	q.Set("limit", strconv.Itoa(limit))
	searchURL := c.baseURL + "/search?" + q.Encode()

	var result SearchResponse
	err := resilience.Do(ctx, c.retry, "jobtech search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return eris.Wrap(err, "jobtech: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "jobtech: search request")
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "jobtech: read response")
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := eris.Errorf("jobtech: unexpected status %d: %s", resp.StatusCode, string(respBody))
			if resilience.IsTransientStatus(resp.StatusCode) {
				return resilience.Transient(statusErr, resp.StatusCode)
			}
			return statusErr
		}

		if err := json.Unmarshal(respBody, &result); err != nil {
			return eris.Wrap(err, "jobtech: unmarshal response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
