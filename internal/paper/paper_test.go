package paper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthor_UnmarshalBothForms(t *testing.T) {
	var authors []Author
	err := json.Unmarshal([]byte(`["Ada Lovelace", {"name": "Alan Turing", "affiliation": "University of Manchester"}, null]`), &authors)
	require.NoError(t, err)
	require.Len(t, authors, 3)

	assert.Equal(t, Author{Name: "Ada Lovelace"}, authors[0])
	assert.Equal(t, Author{Name: "Alan Turing", Affiliation: "University of Manchester"}, authors[1])
	assert.Equal(t, Author{}, authors[2])
}

func TestAuthor_Marshal(t *testing.T) {
	data, err := json.Marshal([]Author{{Name: "Ada Lovelace"}, {Name: "Alan Turing", Affiliation: "Manchester"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["Ada Lovelace", {"name": "Alan Turing", "affiliation": "Manchester"}]`, string(data))
}

func TestAuthor_RejectsNumber(t *testing.T) {
	var a Author
	assert.Error(t, json.Unmarshal([]byte(`42`), &a))
}

func TestPaper_Key(t *testing.T) {
	assert.Equal(t, "a.pdf", (&Paper{Filename: "a.pdf", Title: "A"}).Key())
	assert.Equal(t, "A", (&Paper{Title: "A"}).Key())
}

func TestPaper_MissingFieldsDecodeEmpty(t *testing.T) {
	var p Paper
	require.NoError(t, json.Unmarshal([]byte(`{"title": "Only a title"}`), &p))
	assert.Equal(t, "Only a title", p.Title)
	assert.Empty(t, p.Authors)
	assert.Nil(t, p.MainTopic)

	_, err := p.Topic()
	assert.ErrorIs(t, err, ErrNoTopic)
}

func TestWriteLoad_RoundTripsEnrichment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "papers.json")
	topic := 3
	score := 0.42
	uri := "https://www.wikidata.org/entity/Q49108"
	papers := []Paper{{
		Filename: "a.pdf",
		Title:    "A",
		Authors:  []Author{{Name: "Ada Lovelace"}},
		EnrichedOrganizations: []authority.Entity{
			{Kind: authority.KindOrganization, Name: "MIT", URI: &uri},
		},
		EnrichedProjects: []authority.Entity{
			{Kind: authority.KindProject, Name: "12345"},
		},
		MainTopic:  &topic,
		TopicScore: &score,
	}}

	require.NoError(t, Write(path, papers))
	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, papers[0].EnrichedOrganizations, got[0].EnrichedOrganizations)
	assert.Equal(t, authority.KindProject, got[0].EnrichedProjects[0].Kind)
	assert.Equal(t, 3, *got[0].MainTopic)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestWrite_OverwritesAndEmitsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "papers.json")
	require.NoError(t, Write(path, []Paper{{Title: "old"}}))
	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestIndex_Lookup(t *testing.T) {
	papers := []Paper{
		{Filename: "paper_one.pdf", Title: "Deep Learning for Graphs"},
		{Title: "Untitled Filename Paper"},
		{Filename: "dup.pdf", Title: "Deep Learning for Graphs"},
	}
	idx := NewIndex(papers)

	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"paper_one.pdf", 0, true},
		{"PAPER_ONE.pdf", 0, true},
		{"  deep learning   for graphs ", 0, true},
		{"Untitled Filename Paper", 1, true},
		{"dup.pdf", 2, true},
		{"unknown.pdf", -1, false},
		{"", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := idx.Lookup(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 3, idx.Len())
}
