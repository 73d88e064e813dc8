package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Span is a tagged text span.
type Span struct {
	Label string
	Text  string
	Score float64
}

// Tagger labels organization-like spans in free text.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
}

const (
	// DefaultHuggingFaceURL is the hosted inference endpoint of the default model.
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/dslim/bert-base-NER"

	DefaultTaggerTimeout = 30 * time.Second
)

// Errors returned by the HuggingFace tagger.
var (
	ErrTaggerUnavailable = errors.New("NER model endpoint unavailable")
	ErrInvalidResponse   = errors.New("invalid response from NER model endpoint")
)

// HuggingFaceTagger calls a token-classification inference endpoint with
// simple aggregation, so each returned entity is a whole word group.
type HuggingFaceTagger struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	url        string
	token      string
}

// HuggingFaceOption configures a HuggingFaceTagger.
type HuggingFaceOption func(*HuggingFaceTagger)

// WithToken sets the bearer token.
func WithToken(token string) HuggingFaceOption {
	return func(h *HuggingFaceTagger) {
		h.token = token
	}
}

// WithURL sets the inference endpoint.
func WithURL(url string) HuggingFaceOption {
	return func(h *HuggingFaceTagger) {
		h.url = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HuggingFaceOption {
	return func(h *HuggingFaceTagger) {
		h.httpClient = hc
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) HuggingFaceOption {
	return func(h *HuggingFaceTagger) {
		h.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewHuggingFaceTagger creates a tagger for the hosted inference API.
func NewHuggingFaceTagger(opts ...HuggingFaceOption) *HuggingFaceTagger {
	h := &HuggingFaceTagger{
		httpClient: &http.Client{Timeout: DefaultTaggerTimeout},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
		url:        DefaultHuggingFaceURL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type hfRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
}

type hfEntity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       *int    `json:"start"`
	End         *int    `json:"end"`
}

func (h *HuggingFaceTagger) Tag(ctx context.Context, text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(hfRequest{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTaggerUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTaggerUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrTaggerUnavailable, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var entities []hfEntity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	runes := []rune(text)
	spans := make([]Span, 0, len(entities))
	for _, e := range entities {
		word := e.Word
		// Offsets are character positions; prefer them over the detokenized word.
		if e.Start != nil && e.End != nil && *e.Start >= 0 && *e.Start < *e.End && *e.End <= len(runes) {
			word = string(runes[*e.Start:*e.End])
		}
		spans = append(spans, Span{Label: e.EntityGroup, Text: word, Score: e.Score})
	}
	return spans, nil
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}&'\-]*`)

var connectors = map[string]bool{
	"of": true, "for": true, "and": true, "de": true, "la": true,
	"des": true, "du": true, "del": true, "für": true,
}

var orgKeywords = []string{
	"university", "universidad", "université", "universität", "institute", "instituto",
	"institut", "foundation", "fundación", "council", "agency", "ministry", "centre",
	"center", "laboratory", "laboratories", "society", "fund", "academy", "commission",
	"department", "trust", "school", "hospital", "college", "inc", "ltd", "gmbh",
}

var sentenceWords = map[string]bool{
	"we": true, "this": true, "the": true, "our": true, "it": true, "they": true,
	"in": true, "a": true, "an": true, "thanks": true, "also": true, "finally": true,
	"acknowledgements": true, "acknowledgments": true, "acknowledgement": true, "acknowledgment": true,
}

// HeuristicTagger is an offline tagger: runs of capitalised words (allowing
// lower-case connectors inside a run) become spans, labelled ORG when they
// contain an institutional keyword or are an acronym, MISC otherwise.
type HeuristicTagger struct{}

func (HeuristicTagger) Tag(_ context.Context, text string) ([]Span, error) {
	locs := wordPattern.FindAllStringIndex(text, -1)
	var spans []Span
	var run [][]int

	flush := func() {
		// Trailing connectors never end a span.
		for len(run) > 0 && connectors[strings.ToLower(text[run[len(run)-1][0]:run[len(run)-1][1]])] {
			run = run[:len(run)-1]
		}
		if len(run) > 0 {
			spans = append(spans, labelSpan(text[run[0][0]:run[len(run)-1][1]]))
		}
		run = nil
	}

	for i, loc := range locs {
		word := text[loc[0]:loc[1]]
		if i > 0 && len(run) > 0 && strings.TrimSpace(text[locs[i-1][1]:loc[0]]) != "" {
			flush()
		}
		switch {
		case isCapitalised(word) && !(len(run) == 0 && sentenceWords[strings.ToLower(word)]):
			run = append(run, loc)
		case len(run) > 0 && connectors[strings.ToLower(word)]:
			run = append(run, loc)
		default:
			flush()
		}
	}
	flush()
	return spans, nil
}

func isCapitalised(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r) || unicode.IsDigit(r) && strings.IndexFunc(word, unicode.IsUpper) >= 0
}

func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func labelSpan(s string) Span {
	if isAcronym(s) {
		return Span{Label: "ORG", Text: s, Score: 1}
	}
	lower := strings.ToLower(s)
	for _, w := range strings.Fields(lower) {
		for _, k := range orgKeywords {
			if w == k {
				return Span{Label: "ORG", Text: s, Score: 1}
			}
		}
	}
	return Span{Label: "MISC", Text: s, Score: 1}
}
