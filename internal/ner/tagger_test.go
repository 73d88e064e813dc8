package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceTagger(t *testing.T) {
	text := "Funded by the Agence Nationale de la Recherche."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, text, req.Inputs)
		assert.Equal(t, "simple", req.Parameters["aggregation_strategy"])
		w.Write([]byte(`[
			{"entity_group": "ORG", "score": 0.99, "word": "Agence Nationale de la Rec ##herche", "start": 14, "end": 46},
			{"entity_group": "MISC", "score": 0.5, "word": "Funded"}
		]`))
	}))
	defer srv.Close()

	tagger := NewHuggingFaceTagger(WithURL(srv.URL), WithToken("secret"), WithRateLimit(1000))
	spans, err := tagger.Tag(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Label: "ORG", Text: "Agence Nationale de la Recherche", Score: 0.99}, spans[0])
	assert.Equal(t, "Funded", spans[1].Text)
}

func TestHuggingFaceTagger_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/loading" {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": "Model is currently loading"}`))
			return
		}
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	_, err := NewHuggingFaceTagger(WithURL(srv.URL+"/loading"), WithRateLimit(1000)).Tag(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTaggerUnavailable)

	_, err = NewHuggingFaceTagger(WithURL(srv.URL), WithRateLimit(1000)).Tag(context.Background(), "x")
	assert.ErrorIs(t, err, ErrInvalidResponse)

	spans, err := NewHuggingFaceTagger(WithURL(srv.URL)).Tag(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Empty(t, spans)
}

func TestHeuristicTagger(t *testing.T) {
	text := "This work was supported by the National Science Foundation, the Massachusetts Institute of Technology (MIT) and the Human Brain Project."
	spans, err := HeuristicTagger{}.Tag(context.Background(), text)
	require.NoError(t, err)

	got := map[string]string{}
	for _, s := range spans {
		got[s.Text] = s.Label
	}
	assert.Equal(t, map[string]string{
		"National Science Foundation":           "ORG",
		"Massachusetts Institute of Technology": "ORG",
		"MIT":                                   "ORG",
		"Human Brain Project":                   "MISC",
	}, got)
}

func TestHeuristicTagger_TrailingConnector(t *testing.T) {
	spans, err := HeuristicTagger{}.Tag(context.Background(), "Ministry of Science and the rest")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Ministry of Science", spans[0].Text)
}
