// Package wikidata is a small client for the Wikidata entity search, entity
// data and SPARQL endpoints.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// APIURL is the MediaWiki action API.
	APIURL = "https://www.wikidata.org/w/api.php"

	// EntityDataURL serves full entity records as JSON.
	EntityDataURL = "https://www.wikidata.org/wiki/Special:EntityData"

	// SPARQLURL is the Wikidata Query Service endpoint.
	SPARQLURL = "https://query.wikidata.org/sparql"

	// EntityURIPrefix prefixes a QID to form its canonical URI.
	EntityURIPrefix = "https://www.wikidata.org/entity/"

	DefaultTimeout     = 8 * time.Second
	DefaultRateLimit   = 5.0
	DefaultSearchLimit = 5
	DefaultUserAgent   = "paperkg/0.1 (knowledge graph enrichment)"
)

// Client is a rate-limited HTTP client for Wikidata.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	language   string
	apiURL     string
	entityURL  string
	sparqlURL  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLanguage sets the search and label language (default "en").
func WithLanguage(lang string) ClientOption {
	return func(c *Client) {
		c.language = lang
	}
}

// WithBaseURL points all three endpoints at one server (for testing):
// base+"/w/api.php", base+"/wiki/Special:EntityData" and base+"/sparql".
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.apiURL = base + "/w/api.php"
		c.entityURL = base + "/wiki/Special:EntityData"
		c.sparqlURL = base + "/sparql"
	}
}

// NewClient creates a Wikidata client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		userAgent:  DefaultUserAgent,
		language:   "en",
		apiURL:     APIURL,
		entityURL:  EntityDataURL,
		sparqlURL:  SPARQLURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Language returns the configured label language.
func (c *Client) Language() string {
	return c.language
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, accept string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// Search runs wbsearchentities for items matching term.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	params := url.Values{
		"action":   {"wbsearchentities"},
		"search":   {term},
		"language": {c.language},
		"type":     {"item"},
		"format":   {"json"},
		"limit":    {fmt.Sprint(limit)},
	}
	var resp searchResponse
	if err := c.get(ctx, c.apiURL, params, "application/json", &resp); err != nil {
		return nil, err
	}
	return resp.Search, nil
}

// Entity fetches the full record for qid.
func (c *Client) Entity(ctx context.Context, qid string) (*Entity, error) {
	var resp entityResponse
	if err := c.get(ctx, c.entityURL+"/"+url.PathEscape(qid)+".json", nil, "application/json", &resp); err != nil {
		return nil, err
	}
	if ent, ok := resp.Entities[qid]; ok {
		return &ent, nil
	}
	// Merged items are served under their redirect target.
	for _, ent := range resp.Entities {
		return &ent, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, qid)
}

// SPARQL runs a SELECT query and flattens each binding to variable→value.
func (c *Client) SPARQL(ctx context.Context, query string) ([]Binding, error) {
	params := url.Values{"query": {query}, "format": {"json"}}
	var resp sparqlResponse
	if err := c.get(ctx, c.sparqlURL, params, "application/sparql-results+json", &resp); err != nil {
		return nil, err
	}
	rows := make([]Binding, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		row := make(Binding, len(b))
		for name, v := range b {
			row[name] = v.Value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EntityURI returns the canonical URI of qid.
func EntityURI(qid string) string {
	return EntityURIPrefix + qid
}
