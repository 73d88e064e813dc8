// Package authority resolves candidate organization and project names
// against Wikidata and fills the fixed enrichment templates.
package authority

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/normalize"
	"github.com/matsen/paperkg/internal/wikidata"
)

// Resolver classifies and enriches names. Every distinct normalized name is
// matched at most once per run, however many callers ask for it.
type Resolver struct {
	matcher   Matcher
	cache     Cache
	group     singleflight.Group
	orgTypes  map[string]bool
	projTypes map[string]bool

	matches   atomic.Int64
	cacheHits atomic.Int64
}

// Stats reports resolver activity for the run.
type Stats struct {
	Matches   int64 `json:"matches"`
	CacheHits int64 `json:"cache_hits"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTypes overrides the organization and project type code sets.
func WithTypes(org, proj []string) Option {
	return func(r *Resolver) {
		r.orgTypes = toSet(org)
		r.projTypes = toSet(proj)
	}
}

// NewResolver creates a resolver. The cache is owned by the caller, who
// closes it at the end of the run.
func NewResolver(matcher Matcher, cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		matcher:   matcher,
		cache:     cache,
		orgTypes:  toSet(DefaultOrganizationTypes),
		projTypes: toSet(DefaultProjectTypes),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}

// Stats returns a snapshot of the resolver counters.
func (r *Resolver) Stats() Stats {
	return Stats{Matches: r.matches.Load(), CacheHits: r.cacheHits.Load()}
}

func (r *Resolver) lookup(ctx context.Context, name string) *Lookup {
	key := normalize.Key(name)
	if key == "" {
		return &Lookup{}
	}
	if l, ok := r.cached(ctx, key); ok {
		r.cacheHits.Add(1)
		return l
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		if l, ok := r.cached(ctx, key); ok {
			r.cacheHits.Add(1)
			return l, nil
		}
		r.matches.Add(1)
		clean := normalize.Clean(name)
		found, err := r.matcher.Match(ctx, clean)
		if err != nil {
			logger.Warn("authority lookup failed", "name", name, "err", err)
		}
		l := &Lookup{}
		if found != nil {
			*l = *found
		}
		l.Name = clean
		if err := r.cache.Set(ctx, key, l); err != nil {
			logger.Warn("authority cache write failed", "key", key, "err", err)
		}
		return l, nil
	})
	return v.(*Lookup)
}

func (r *Resolver) cached(ctx context.Context, key string) (*Lookup, bool) {
	l, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("authority cache read failed", "key", key, "err", err)
		return nil, false
	}
	return l, ok
}

func (r *Resolver) kindOf(l *Lookup) Kind {
	if !l.Matched() {
		return KindUnknown
	}
	for _, t := range l.Types {
		if r.orgTypes[t] {
			return KindOrganization
		}
	}
	for _, t := range l.Types {
		if r.projTypes[t] {
			return KindProject
		}
	}
	return KindUnknown
}

// Classify returns the kind of name, or KindUnknown when the authority has
// no single exact match or the match has neither accepted type.
func (r *Resolver) Classify(ctx context.Context, name string) Kind {
	return r.kindOf(r.lookup(ctx, name))
}

// Resolve enriches name. With an expected kind the result is always a
// template for that kind, carrying only the name when the authority match
// is missing or of another kind. Without one, the kind is classified and
// nil is returned for unclassifiable names.
//
// Names with the same normalized key get identical entities, named after
// the spelling that was looked up first.
func (r *Resolver) Resolve(ctx context.Context, name string, expected Kind) *Entity {
	l := r.lookup(ctx, name)
	kind := r.kindOf(l)
	surface := l.Name
	if surface == "" {
		surface = normalize.Clean(name)
	}

	if expected == KindUnknown {
		if kind == KindUnknown {
			return nil
		}
		return fill(surface, kind, l)
	}
	if !r.hasType(l, expected) {
		return &Entity{Kind: expected, Name: surface}
	}
	return fill(surface, expected, l)
}

func (r *Resolver) hasType(l *Lookup, kind Kind) bool {
	if !l.Matched() {
		return false
	}
	set := r.orgTypes
	if kind == KindProject {
		set = r.projTypes
	}
	for _, t := range l.Types {
		if set[t] {
			return true
		}
	}
	return false
}

func fill(name string, kind Kind, l *Lookup) *Entity {
	uri := wikidata.EntityURI(l.QID)
	e := &Entity{
		Kind:      kind,
		Name:      name,
		URI:       &uri,
		Label:     l.Label,
		Country:   l.Country,
		Website:   l.Website,
		StartDate: l.StartDate,
		EndDate:   l.EndDate,
		Funder:    l.Funder,
	}
	if kind == KindOrganization {
		e.Founder = l.Founder
	}
	return e
}
