// Package orcid is a client for the ORCID public API (v3.0).
package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/paperkg/internal/logger"
)

const (
	// BaseURL is the public API root.
	BaseURL = "https://pub.orcid.org/v3.0"

	// TokenURL issues client-credentials tokens.
	TokenURL = "https://orcid.org/oauth/token"

	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 8.0
)

// Client is a rate-limited ORCID public API client. Credentials are
// optional: without them, or when the token request fails, requests are
// sent anonymously.
type Client struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string

	tokenOnce sync.Once
	token     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentials sets the OAuth client id and secret.
func WithCredentials(id, secret string) ClientOption {
	return func(c *Client) {
		c.clientID = id
		c.clientSecret = secret
	}
}

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

// WithBaseURL sets the API root and token endpoint (for testing).
func WithBaseURL(api, token string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(api, "/")
		c.tokenURL = token
	}
}

// NewClient creates an ORCID client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
		tokenURL:   TokenURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) accessToken(ctx context.Context) string {
	c.tokenOnce.Do(func() {
		if c.clientID == "" || c.clientSecret == "" {
			return
		}
		tok, err := c.fetchToken(ctx)
		if err != nil {
			logger.Warn("ORCID token request failed, continuing anonymously", "err", err)
			return
		}
		c.token = tok
	})
	return c.token
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"/read-public"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()
	if err := checkHTTPErrors(resp, ""); err != nil {
		return "", err
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrInvalidResponse)
	}
	return body.AccessToken, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, id string, out any) error {
	token := c.accessToken(ctx)
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, id); err != nil {
		return err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// SearchQuery renders the Solr query for a given and family name.
func SearchQuery(given, family string) string {
	return "family-name:" + quoteTerm(family) + " AND given-names:" + quoteTerm(given)
}

func quoteTerm(s string) string {
	if !strings.ContainsAny(s, " \t+-&|!(){}[]^\"~*?:\\/") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// Search returns the ORCID iDs matching the name, in API order.
func (c *Client) Search(ctx context.Context, given, family string) ([]string, error) {
	var resp searchResponse
	if err := c.get(ctx, "/search", url.Values{"q": {SearchQuery(given, family)}}, "", &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Identifier != nil && r.Identifier.Path != "" {
			ids = append(ids, r.Identifier.Path)
		}
	}
	return ids, nil
}

// Works returns the first title of every work group on the record.
func (c *Client) Works(ctx context.Context, id string) (*Works, error) {
	var resp worksResponse
	if err := c.get(ctx, "/"+id+"/works", nil, id, &resp); err != nil {
		return nil, err
	}
	w := &Works{Count: len(resp.Group)}
	for _, g := range resp.Group {
		if len(g.WorkSummary) == 0 {
			continue
		}
		t := g.WorkSummary[0].Title
		if t != nil && t.Title != nil && t.Title.Value != nil && *t.Title.Value != "" {
			w.Titles = append(w.Titles, *t.Title.Value)
		}
	}
	return w, nil
}

// Educations returns the record's education history.
func (c *Client) Educations(ctx context.Context, id string) ([]Affiliation, error) {
	return c.affiliations(ctx, id, "education")
}

// Employments returns the record's employment history.
func (c *Client) Employments(ctx context.Context, id string) ([]Affiliation, error) {
	return c.affiliations(ctx, id, "employment")
}

func (c *Client) affiliations(ctx context.Context, id, section string) ([]Affiliation, error) {
	var resp affiliationsResponse
	if err := c.get(ctx, "/"+id+"/"+section+"s", nil, id, &resp); err != nil {
		return nil, err
	}
	out := []Affiliation{}
	for _, g := range resp.Groups {
		for _, s := range g.Summaries {
			if summary, ok := s[section+"-summary"]; ok {
				out = append(out, summary.simplify())
			}
		}
	}
	legacy := resp.EducationSummary
	if section == "employment" {
		legacy = resp.EmploymentSummary
	}
	for _, s := range legacy {
		out = append(out, s.simplify())
	}
	return out, nil
}

// Person returns external identifiers, researcher URLs and other names.
func (c *Client) Person(ctx context.Context, id string) (*PersonInfo, error) {
	var resp personResponse
	if err := c.get(ctx, "/"+id+"/person", nil, id, &resp); err != nil {
		return nil, err
	}
	info := &PersonInfo{
		ExternalIDs:    []ExternalID{},
		ResearcherURLs: []ResearcherURL{},
		OtherNames:     []string{},
	}
	if resp.ExternalIdentifiers != nil {
		for _, e := range resp.ExternalIdentifiers.Items {
			x := ExternalID{Type: e.Type, Value: e.Value}
			if e.URL != nil {
				x.URL = e.URL.Value
			}
			info.ExternalIDs = append(info.ExternalIDs, x)
		}
	}
	if resp.ResearcherURLs != nil {
		for _, u := range resp.ResearcherURLs.Items {
			x := ResearcherURL{Label: u.Name}
			if u.URL != nil {
				x.URL = u.URL.Value
			}
			info.ResearcherURLs = append(info.ResearcherURLs, x)
		}
	}
	if resp.OtherNames != nil {
		for _, n := range resp.OtherNames.Items {
			if n.Content != nil {
				info.OtherNames = append(info.OtherNames, *n.Content)
			}
		}
	}
	return info, nil
}
