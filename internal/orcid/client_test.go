package orcid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testID = "0000-0002-1825-0097"

	worksJSON = `{"group": [
		{"work-summary": [{"title": {"title": {"value": "Phylogenetic inference with variational methods"}}}, {"title": {"title": {"value": "duplicate"}}}]},
		{"work-summary": [{"title": null}]},
		{"work-summary": []}
	]}`

	educationsJSON = `{"affiliation-group": [{"summaries": [{"education-summary": {
		"role-title": "PhD",
		"start-date": {"year": {"value": "2005"}},
		"end-date": null,
		"organization": {"name": "University of Washington", "address": {"city": "Seattle", "country": "US"},
			"disambiguated-organization": {"disambiguated-organization-identifier": "7284"}}
	}}]}]}`

	employmentsLegacyJSON = `{"employment-summary": [{"organization": {"name": "Fred Hutch"}, "start-date": {"year": {"value": "2012"}}}]}`

	personJSON = `{
		"external-identifiers": {"external-identifier": [{"external-id-type": "Scopus Author ID", "external-id-value": "123", "external-id-url": {"value": "https://scopus.example/123"}}]},
		"researcher-urls": {"researcher-url": [{"url-name": "Lab", "url": {"value": "https://lab.example"}}]},
		"other-names": {"other-name": [{"content": "E. Matsen"}, {"content": null}]}
	}`
)

func newTestServer(t *testing.T, tokenCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "/read-public", r.Form.Get("scope"))
		w.Write([]byte(`{"access_token": "tok"}`))
	})
	mux.HandleFunc("/v3.0/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("q") {
		case `family-name:Matsen AND given-names:Erick`:
			w.Write([]byte(`{"num-found": 2, "result": [{"orcid-identifier": {"path": "` + testID + `"}}, {"orcid-identifier": {"path": "0000-0000-0000-0001"}}]}`))
		default:
			w.Write([]byte(`{"num-found": 0, "result": null}`))
		}
	})
	mux.HandleFunc("/v3.0/"+testID+"/works", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(worksJSON))
	})
	mux.HandleFunc("/v3.0/"+testID+"/educations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(educationsJSON))
	})
	mux.HandleFunc("/v3.0/"+testID+"/employments", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(employmentsLegacyJSON))
	})
	mux.HandleFunc("/v3.0/"+testID+"/person", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(personJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) (*Client, *atomic.Int32) {
	var calls atomic.Int32
	srv := newTestServer(t, &calls)
	c := NewClient(
		WithBaseURL(srv.URL+"/v3.0", srv.URL+"/oauth/token"),
		WithCredentials("id", "secret"),
		WithRateLimit(1000),
	)
	return c, &calls
}

func TestClient_Search(t *testing.T) {
	c, tokenCalls := newTestClient(t)
	ctx := context.Background()

	ids, err := c.Search(ctx, "Erick", "Matsen")
	require.NoError(t, err)
	assert.Equal(t, []string{testID, "0000-0000-0000-0001"}, ids)

	ids, err = c.Search(ctx, "Nobody", "Known")
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Equal(t, int32(1), tokenCalls.Load(), "token is fetched once")
}

func TestClient_Works(t *testing.T) {
	c, _ := newTestClient(t)
	w, err := c.Works(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Count)
	assert.Equal(t, []string{"Phylogenetic inference with variational methods"}, w.Titles)
}

func TestClient_Affiliations(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	edu, err := c.Educations(ctx, testID)
	require.NoError(t, err)
	require.Len(t, edu, 1)
	assert.Equal(t, "University of Washington", *edu[0].Institution)
	assert.Equal(t, "Seattle", *edu[0].City)
	assert.Equal(t, "PhD", *edu[0].Role)
	assert.Equal(t, "2005", *edu[0].StartYear)
	assert.Nil(t, edu[0].EndYear)
	assert.Equal(t, "7284", *edu[0].Identifier)

	emp, err := c.Employments(ctx, testID)
	require.NoError(t, err)
	require.Len(t, emp, 1)
	assert.Equal(t, "Fred Hutch", *emp[0].Institution)
	assert.Nil(t, emp[0].Country)
}

func TestClient_Person(t *testing.T) {
	c, _ := newTestClient(t)
	info, err := c.Person(context.Background(), testID)
	require.NoError(t, err)

	require.Len(t, info.ExternalIDs, 1)
	assert.Equal(t, "Scopus Author ID", *info.ExternalIDs[0].Type)
	assert.Equal(t, "https://scopus.example/123", *info.ExternalIDs[0].URL)
	require.Len(t, info.ResearcherURLs, 1)
	assert.Equal(t, "Lab", *info.ResearcherURLs[0].Label)
	assert.Equal(t, []string{"E. Matsen"}, info.OtherNames)
}

func TestClient_NotFound(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Works(context.Background(), "0000-0000-0000-0009")
	assert.True(t, IsNotFound(err))
}

func TestClient_AnonymousWhenTokenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"result": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL, srv.URL+"/oauth/token"), WithCredentials("id", "bad"), WithRateLimit(1000))
	ids, err := c.Search(context.Background(), "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		given, family, want string
	}{
		{"Erick", "Matsen", "family-name:Matsen AND given-names:Erick"},
		{"Jean", "van der Berg", `family-name:"van der Berg" AND given-names:Jean`},
		{"Anne-Marie", "O'Neil", `family-name:O'Neil AND given-names:"Anne-Marie"`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchQuery(tt.given, tt.family))
		})
	}
}
