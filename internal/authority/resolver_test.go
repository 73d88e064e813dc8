package authority

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMatcher struct {
	calls   atomic.Int64
	lookups map[string]*Lookup
	err     error
}

func (f *fakeMatcher) Match(_ context.Context, name string) (*Lookup, error) {
	f.calls.Add(1)
	if f.err != nil {
		return &Lookup{}, f.err
	}
	if l, ok := f.lookups[name]; ok {
		return l, nil
	}
	return &Lookup{}, nil
}

func mitLookup() *Lookup {
	return &Lookup{
		QID:     "Q49108",
		Types:   []string{"Q3918"},
		Label:   strp("Massachusetts Institute of Technology"),
		Country: strp("Q30"),
		Founder: strp("Q361464"),
	}
}

func TestResolver_CaseVariantsShareOneLookup(t *testing.T) {
	m := &fakeMatcher{lookups: map[string]*Lookup{"MIT": mitLookup()}}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	a := r.Resolve(ctx, "MIT", KindOrganization)
	b := r.Resolve(ctx, "mit", KindOrganization)

	assert.Equal(t, int64(1), m.calls.Load())
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, *a, *b)
	assert.Equal(t, "MIT", a.Name)
	assert.Equal(t, "https://www.wikidata.org/entity/Q49108", *a.URI)
	assert.Equal(t, Stats{Matches: 1, CacheHits: 1}, r.Stats())

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestResolver_UnmatchedCaseVariantsIdentical(t *testing.T) {
	m := &fakeMatcher{}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	a := r.Resolve(ctx, "Smith Lab", KindOrganization)
	b := r.Resolve(ctx, "smith  LAB;", KindOrganization)
	assert.Equal(t, *a, *b)
	assert.Equal(t, "Smith Lab", b.Name)
	assert.Equal(t, int64(1), m.calls.Load())
}

func TestResolver_UnresolvableIsDiscarded(t *testing.T) {
	m := &fakeMatcher{}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	assert.Equal(t, KindUnknown, r.Classify(ctx, "Some Lab Nobody Knows"))
	assert.Nil(t, r.Resolve(ctx, "Some Lab Nobody Knows", KindUnknown))
}

func TestResolver_Classify(t *testing.T) {
	m := &fakeMatcher{lookups: map[string]*Lookup{
		"MIT":          mitLookup(),
		"Horizon 2020": {QID: "Q1", Types: []string{"Q722377"}},
		"Paris":        {QID: "Q90", Types: []string{"Q515"}},
		"Both":         {QID: "Q2", Types: []string{"Q722377", "Q43229"}},
	}}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	tests := []struct {
		name string
		want Kind
	}{
		{"MIT", KindOrganization},
		{"Horizon 2020", KindProject},
		{"Paris", KindUnknown},
		{"Both", KindOrganization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Classify(ctx, tt.name))
		})
	}
}

func TestResolver_ExpectedKindAlwaysYieldsTemplate(t *testing.T) {
	m := &fakeMatcher{lookups: map[string]*Lookup{"MIT": mitLookup()}}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	// Matched, but the record is an organization, not a project.
	e := r.Resolve(ctx, "MIT", KindProject)
	require.NotNil(t, e)
	assert.Equal(t, KindProject, e.Kind)
	assert.Equal(t, "MIT", e.Name)
	assert.Nil(t, e.URI)

	e = r.Resolve(ctx, " Unknown  Thing ", KindOrganization)
	require.NotNil(t, e)
	assert.Equal(t, "Unknown Thing", e.Name)
	assert.False(t, e.Matched())
}

func TestResolver_ProjectTemplateHasNoFounder(t *testing.T) {
	l := &Lookup{QID: "Q5", Types: []string{"Q23044590"}, Founder: strp("Q1"), Funder: strp("Q458")}
	r := NewResolver(&fakeMatcher{lookups: map[string]*Lookup{"ERC": l}}, NewMemoryCache())

	e := r.Resolve(context.Background(), "ERC", KindProject)
	require.NotNil(t, e)
	assert.Nil(t, e.Founder)
	assert.Equal(t, "Q458", *e.Funder)
}

func TestResolver_FailureIsCachedNotRetried(t *testing.T) {
	m := &fakeMatcher{err: errors.New("connection refused")}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := r.Resolve(ctx, "CNRS", KindOrganization)
		require.NotNil(t, e)
		assert.Equal(t, "CNRS", e.Name)
		assert.Nil(t, e.URI)
	}
	assert.Equal(t, int64(1), m.calls.Load())
}

func TestResolver_ConcurrentCallersMatchOnce(t *testing.T) {
	m := &fakeMatcher{lookups: map[string]*Lookup{"MIT": mitLookup()}}
	r := NewResolver(m, NewMemoryCache())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "MIT"
			if i%2 == 0 {
				name = "mit"
			}
			r.Classify(ctx, name)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(1), m.calls.Load())
}

func TestResolver_EmptyNameSkipsMatcher(t *testing.T) {
	m := &fakeMatcher{}
	r := NewResolver(m, NewMemoryCache())
	assert.Equal(t, KindUnknown, r.Classify(context.Background(), " ;. "))
	assert.Zero(t, m.calls.Load())
}

func TestResolver_WithTypes(t *testing.T) {
	m := &fakeMatcher{lookups: map[string]*Lookup{"Paris": {QID: "Q90", Types: []string{"Q515"}}}}
	r := NewResolver(m, NewMemoryCache(), WithTypes([]string{"Q515"}, nil))
	assert.Equal(t, KindOrganization, r.Classify(context.Background(), "Paris"))
}
