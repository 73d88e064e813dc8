// Package ner extracts candidate organization and project names from
// acknowledgement text.
package ner

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/normalize"
)

// DefaultMinLength is the shortest candidate, in characters, that is kept.
const DefaultMinLength = 3

// DefaultLabels are the tagger labels treated as organization-like.
var DefaultLabels = []string{"ORG", "MISC"}

// Classifier decides the kind of a model candidate.
type Classifier interface {
	Classify(ctx context.Context, name string) authority.Kind
}

// Result is the candidate set for one text.
type Result struct {
	Organizations []string `json:"organizations"`
	Projects      []string `json:"projects"`
}

// Extractor combines a model tagger with the grant and programme patterns.
type Extractor struct {
	tagger     Tagger
	classifier Classifier
	minLength  int
	labels     map[string]bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinLength overrides DefaultMinLength.
func WithMinLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// WithLabels overrides DefaultLabels.
func WithLabels(labels []string) Option {
	return func(e *Extractor) {
		e.labels = make(map[string]bool, len(labels))
		for _, l := range labels {
			e.labels[l] = true
		}
	}
}

// NewExtractor creates an extractor. A nil tagger runs the patterns only.
func NewExtractor(tagger Tagger, classifier Classifier, opts ...Option) *Extractor {
	e := &Extractor{tagger: tagger, classifier: classifier, minLength: DefaultMinLength}
	WithLabels(DefaultLabels)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// candidates keeps the first surface form seen per normalized key.
type candidates struct {
	forms map[string]string
}

func newCandidates() *candidates {
	return &candidates{forms: make(map[string]string)}
}

func (c *candidates) add(s string) {
	if _, ok := c.forms[normalize.Key(s)]; !ok {
		c.forms[normalize.Key(s)] = s
	}
}

func (c *candidates) has(s string) bool {
	_, ok := c.forms[normalize.Key(s)]
	return ok
}

func (c *candidates) sorted() []string {
	out := make([]string, 0, len(c.forms))
	for _, s := range c.forms {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (e *Extractor) keep(s string) (string, bool) {
	s = normalize.Clean(s)
	return s, utf8.RuneCountInString(s) >= e.minLength
}

// Extract returns the organization and project candidates of text.
// Pattern matches are projects without lookup. Model spans are kept only
// when the classifier places them; everything else is dropped.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	orgs, projs := newCandidates(), newCandidates()

	for _, raw := range append(GrantCodes(text), Programmes(text)...) {
		if s, ok := e.keep(raw); ok {
			projs.add(s)
		}
	}

	for _, s := range e.modelCandidates(ctx, text) {
		if projs.has(s) || orgs.has(s) {
			continue
		}
		switch e.classifier.Classify(ctx, s) {
		case authority.KindOrganization:
			orgs.add(s)
		case authority.KindProject:
			projs.add(s)
		default:
			logger.Debug("discarding unclassifiable candidate", "candidate", s)
		}
	}

	return Result{Organizations: orgs.sorted(), Projects: projs.sorted()}
}

func (e *Extractor) modelCandidates(ctx context.Context, text string) []string {
	if e.tagger == nil || text == "" {
		return nil
	}
	spans, err := e.tagger.Tag(ctx, text)
	if err != nil {
		logger.Warn("tagger failed, using patterns only", "err", err)
		return nil
	}
	seen := newCandidates()
	var out []string
	for _, sp := range spans {
		if !e.labels[sp.Label] {
			continue
		}
		s, ok := e.keep(sp.Text)
		if !ok || seen.has(s) {
			continue
		}
		seen.add(s)
		out = append(out, s)
	}
	return out
}
