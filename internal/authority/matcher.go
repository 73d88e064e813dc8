package authority

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/paperkg/internal/normalize"
	"github.com/matsen/paperkg/internal/wikidata"
)

// DefaultOrganizationTypes are the instance-of codes accepted as organizations:
// organization, university, research institute, company, government agency.
var DefaultOrganizationTypes = []string{"Q43229", "Q3918", "Q783794", "Q79913", "Q31855"}

// DefaultProjectTypes are the codes for research project, framework programme
// and research programme.
var DefaultProjectTypes = []string{"Q23044590", "Q722377", "Q3402703"}

// Matcher finds the single authority record for a name. A nil error with an
// unmatched Lookup means "no resolution"; an error means the call failed.
type Matcher interface {
	Match(ctx context.Context, name string) (*Lookup, error)
}

// Source is the subset of the Wikidata client used by the matchers.
type Source interface {
	Search(ctx context.Context, term string, limit int) ([]wikidata.SearchHit, error)
	Entity(ctx context.Context, qid string) (*wikidata.Entity, error)
	SPARQL(ctx context.Context, query string) ([]wikidata.Binding, error)
	Language() string
}

// ExactMatcher accepts a search hit only when it is the one hit whose label
// equals the name up to case.
type ExactMatcher struct {
	source Source
	limit  int
}

// NewExactMatcher creates the default label-equality matcher.
func NewExactMatcher(source Source, limit int) *ExactMatcher {
	if limit <= 0 {
		limit = wikidata.DefaultSearchLimit
	}
	return &ExactMatcher{source: source, limit: limit}
}

func (m *ExactMatcher) Match(ctx context.Context, name string) (*Lookup, error) {
	hits, err := m.source.Search(ctx, name, m.limit)
	if err != nil {
		return &Lookup{}, err
	}
	want := normalize.Key(name)
	var exact []string
	for _, h := range hits {
		if normalize.Key(h.Label) == want {
			exact = append(exact, h.ID)
		}
	}
	if len(exact) != 1 {
		return &Lookup{}, nil
	}
	return fetchLookup(ctx, m.source, exact[0])
}

// SPARQLMatcher searches labels containing the name among items typed with
// one of the accepted organization or project codes. Like ExactMatcher it
// accepts only a single item whose label equals the name, unless
// containment matches are enabled.
type SPARQLMatcher struct {
	source            Source
	types             []string
	limit             int
	acceptContainment bool
}

// SPARQLOption configures a SPARQLMatcher.
type SPARQLOption func(*SPARQLMatcher)

// WithContainmentMatch also accepts the only item returned when none has an
// exact label, e.g. "Institute of Technology" for MIT.
func WithContainmentMatch(accept bool) SPARQLOption {
	return func(m *SPARQLMatcher) { m.acceptContainment = accept }
}

// NewSPARQLMatcher creates a containment matcher restricted to types.
func NewSPARQLMatcher(source Source, types []string, limit int, opts ...SPARQLOption) *SPARQLMatcher {
	if limit <= 0 {
		limit = wikidata.DefaultSearchLimit
	}
	m := &SPARQLMatcher{source: source, types: types, limit: limit}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Query renders the containment query for name.
func (m *SPARQLMatcher) Query(name string) string {
	values := make([]string, len(m.types))
	for i, t := range m.types {
		values[i] = "wd:" + t
	}
	return fmt.Sprintf(`SELECT DISTINCT ?item ?itemLabel WHERE {
  VALUES ?type { %s }
  ?item wdt:P31 ?type ;
        rdfs:label ?itemLabel .
  FILTER(LANG(?itemLabel) = %q)
  FILTER(CONTAINS(LCASE(?itemLabel), %q))
}
LIMIT %d`, strings.Join(values, " "), m.source.Language(), strings.ToLower(normalize.Clean(name)), m.limit)
}

func (m *SPARQLMatcher) Match(ctx context.Context, name string) (*Lookup, error) {
	rows, err := m.source.SPARQL(ctx, m.Query(name))
	if err != nil {
		return &Lookup{}, err
	}

	want := normalize.Key(name)
	items := make(map[string]bool)
	var exact []string
	for _, row := range rows {
		qid := strings.TrimPrefix(row["item"], "http://www.wikidata.org/entity/")
		if qid == "" || items[qid] {
			continue
		}
		items[qid] = true
		if normalize.Key(row["itemLabel"]) == want {
			exact = append(exact, qid)
		}
	}

	switch {
	case len(exact) == 1:
		return fetchLookup(ctx, m.source, exact[0])
	case len(exact) == 0 && len(items) == 1 && m.acceptContainment:
		for qid := range items {
			return fetchLookup(ctx, m.source, qid)
		}
	}
	return &Lookup{}, nil
}

func fetchLookup(ctx context.Context, source Source, qid string) (*Lookup, error) {
	ent, err := source.Entity(ctx, qid)
	if err != nil {
		return &Lookup{}, err
	}
	types := ent.InstanceOf()
	sort.Strings(types)
	start := ent.FirstValue("P580")
	if start == nil {
		start = ent.FirstValue("P571")
	}
	return &Lookup{
		QID:       qid,
		Types:     types,
		Label:     ent.Label(source.Language()),
		Country:   ent.FirstValue("P17"),
		Website:   ent.FirstValue("P856"),
		StartDate: start,
		EndDate:   ent.FirstValue("P582"),
		Funder:    ent.FirstValue("P859"),
		Founder:   ent.FirstValue("P112"),
	}, nil
}
