package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/orcid"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/person"
	"github.com/matsen/paperkg/internal/similarity"
)

func strp(s string) *string { return &s }

func corpus() []paper.Paper {
	return []paper.Paper{
		{
			Filename:        "a.pdf",
			Title:           "Variational phylogenetics",
			PublicationDate: "2021-03-01",
			Authors:         []paper.Author{{Name: "Ada Lovelace"}, {Name: "Alan Turing"}},
			References: []paper.Reference{
				{Title: "Bayesian trees", Identifier: strp("10.1/xyz")},
				{Title: "Variational phylogenetics"},
			},
			EnrichedOrganizations: []authority.Entity{{
				Kind: authority.KindOrganization, Name: "Fred Hutch",
				URI: strp("https://www.wikidata.org/entity/Q1"), Country: strp("Q30"),
			}},
			Projects: []string{"ERC-2020-12345"},
		},
		{
			Filename:      "b.pdf",
			Title:         "Tree priors",
			Authors:       []paper.Author{{Name: "ada  lovelace"}},
			Organizations: []string{"fred hutch"},
			Projects:      []string{"ERC-2020-12345"},
		},
		{Filename: "c.pdf", Title: "Unrelated"},
	}
}

func edgesWith(g *Graph, pred string) []Edge {
	var out []Edge
	for _, e := range g.Edges() {
		if e.Predicate == pred {
			out = append(out, e)
		}
	}
	return out
}

func TestAssembler_Papers(t *testing.T) {
	papers := corpus()
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()))
	a.AddPapers(papers)
	g := a.Graph()

	id := a.AddPaper(&papers[0])
	assert.Equal(t, "Paper_1", id, "re-adding a paper returns its node")

	corpusPapers := 3
	references := 2
	assert.Len(t, g.NodesOfType(TypePaper), corpusPapers+references)
	assert.Len(t, edgesWith(g, PredReferences), references)

	n, _ := g.Node("Paper_1")
	title, _ := n.Attr(PredHasTitle)
	date, _ := n.Attr(PredHasDate)
	assert.Equal(t, "Variational phylogenetics", title)
	assert.Equal(t, "2021-03-01", date)

	// The second reference shares a corpus title but stays a separate node.
	for _, e := range edgesWith(g, PredReferences) {
		assert.NotEqual(t, "Paper_1", e.Object)
	}

	st := a.Stats()
	assert.Equal(t, 3, st.Papers)
	assert.Equal(t, 1, st.DuplicatePapers)
}

func TestAssembler_IdentityMaps(t *testing.T) {
	papers := corpus()
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()))
	a.AddPapers(papers)
	g := a.Graph()

	assert.Len(t, g.NodesOfType(TypePerson), 2, "case and spacing variants are one person")
	assert.Len(t, g.NodesOfType(TypeOrganization), 1)
	assert.Len(t, g.NodesOfType(TypeProject), 1)
	assert.Len(t, edgesWith(g, PredHasAuthor), 3)
	assert.Len(t, edgesWith(g, PredAcknowledges), 4)

	org := g.NodesOfType(TypeOrganization)[0]
	assert.Equal(t, []Attr{
		{Predicate: "has_name_organization", Value: "Fred Hutch"},
		{Predicate: "has_wikidata_uri", Value: "https://www.wikidata.org/entity/Q1", Datatype: AnyURI},
		{Predicate: "has_located_country", Value: "Q30"},
	}, org.Attrs)

	proj := g.NodesOfType(TypeProject)[0]
	name, _ := proj.Attr("has_id_project")
	assert.Equal(t, "ERC-2020-12345", name)
}

func TestAssembler_EnrichedAuthors(t *testing.T) {
	papers := corpus()
	works := 12
	records := []person.Record{
		{FullName: "Ada Lovelace", PaperFilename: "b.pdf", GivenName: "Ada", FamilyName: "Lovelace"},
		{
			FullName: "Ada Lovelace", PaperFilename: "a.pdf", GivenName: "Ada", FamilyName: "Lovelace",
			ORCID: strp("0000-0001-2345-6789"), WorkCount: &works,
			Employment: []orcid.Affiliation{{Institution: strp("Fred Hutch")}},
			Education:  []orcid.Affiliation{{Institution: strp("fred hutch")}, {Institution: strp("UW")}},
		},
	}
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()), WithAuthors(records))
	a.AddPapers(papers)

	ada, _ := a.Graph().Node("Person_1")
	orcidID, ok := ada.Attr(PredHasORCID)
	require.True(t, ok)
	assert.Equal(t, "0000-0001-2345-6789", orcidID)

	var affs []string
	for _, attr := range ada.Attrs {
		if attr.Predicate == PredHasAffiliation {
			affs = append(affs, attr.Value)
		}
	}
	assert.Equal(t, []string{"Fred Hutch", "UW"}, affs)
	count, _ := ada.Attr(PredHasWorkCount)
	assert.Equal(t, "12", count)
	assert.Equal(t, 1, a.Stats().EnrichedPersons)

	alan, _ := a.Graph().Node("Person_2")
	assert.Equal(t, []Attr{{Predicate: PredHasName, Value: "Alan Turing"}}, alan.Attrs)
}

func TestAssembler_RecordWithoutORCIDIsNotCountedEnriched(t *testing.T) {
	papers := corpus()
	records := []person.Record{
		{FullName: "Alan Turing", PaperFilename: "a.pdf", GivenName: "Alan", FamilyName: "Turing"},
	}
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()), WithAuthors(records))
	a.AddPapers(papers)

	alan, _ := a.Graph().Node("Person_2")
	given, ok := alan.Attr(PredHasGivenName)
	require.True(t, ok)
	assert.Equal(t, "Alan", given)
	assert.Zero(t, a.Stats().EnrichedPersons)
}

func TestAssembler_TopicSimilarities(t *testing.T) {
	papers := corpus()
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()))
	a.AddPapers(papers)
	g := a.Graph()

	a.AddTopicSimilarities("4", []similarity.Pair{
		{Paper1: "a.pdf", Paper2: "b.pdf", Similarity: 0.4},
		{Paper1: "a.pdf", Paper2: "c.pdf", Similarity: 0},
		{Paper1: "b.pdf", Paper2: "c.pdf", Similarity: 0.7},
		{Paper1: "a.pdf", Paper2: "missing.pdf", Similarity: 0.9},
	})
	a.AddTopicSimilarities("4", []similarity.Pair{{Paper1: "b.pdf", Paper2: "a.pdf", Similarity: 0.4}})

	require.Len(t, g.NodesOfType(TypeTopic), 1)
	topic := g.NodesOfType(TypeTopic)[0]
	name, _ := topic.Attr(PredHasNameTopic)
	assert.Equal(t, "4", name)

	similar := edgesWith(g, PredSimilarTo)
	require.Len(t, similar, 3)
	paperIDs := map[string]bool{"Paper_1": true, "Paper_4": true, "Paper_5": true}
	for _, e := range similar {
		assert.True(t, paperIDs[e.Subject] && paperIDs[e.Object], "similar_to %v joins corpus paper nodes", e)
	}

	belongings := g.NodesOfType(TypeTopicBelonging)
	require.Len(t, belongings, 3, "one membership per paper in the topic")
	scores := make(map[string]string)
	for _, b := range belongings {
		var paperID string
		for _, e := range g.EdgesFrom(b.ID) {
			if e.Predicate == PredHasPaper {
				paperID = e.Object
			}
		}
		scores[paperID], _ = b.Attr(PredHasPercentage)
	}
	assert.Equal(t, map[string]string{"Paper_1": "0.4", "Paper_4": "0.7", "Paper_5": "0.7"}, scores)

	st := a.Stats()
	assert.Equal(t, 3, st.SimilarityEdges)
	assert.Equal(t, 1, st.UnresolvedPairs)
}

func TestAssembler_ZeroScoreMembership(t *testing.T) {
	papers := corpus()
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()))
	a.AddPapers(papers)
	a.AddTopicSimilarities("0", []similarity.Pair{{Paper1: "a.pdf", Paper2: "c.pdf", Similarity: 0}})

	belongings := a.Graph().NodesOfType(TypeTopicBelonging)
	require.Len(t, belongings, 2)
	for _, b := range belongings {
		v, ok := b.Attr(PredHasPercentage)
		assert.True(t, ok)
		assert.Equal(t, "0", v)
	}
}

func TestAssembler_JoinsByTitle(t *testing.T) {
	papers := corpus()
	a := NewAssembler(papers, WithIDGenerator(SequentialIDs()))
	a.AddPapers(papers)
	a.AddTopicSimilarities("1", []similarity.Pair{{Paper1: "variational PHYLOGENETICS", Paper2: "Tree priors", Similarity: 0.5}})

	similar := edgesWith(a.Graph(), PredSimilarTo)
	require.Len(t, similar, 1)
	assert.Equal(t, Edge{Subject: "Paper_1", Predicate: PredSimilarTo, Object: "Paper_4"}, similar[0])
}
