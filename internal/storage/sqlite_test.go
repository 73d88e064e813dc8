package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/similarity"
)

func intp(i int) *int { return &i }

// setupTestDB assembles a small graph and loads it into a fresh database.
func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()

	papers := []paper.Paper{
		{Filename: "a.pdf", Title: "Variational Bayesian Phylogenetics", PublicationDate: "2021", MainTopic: intp(1)},
		{Filename: "b.pdf", Title: "Tree Priors for Phylogenetics", MainTopic: intp(1)},
		{Filename: "c.pdf", Title: "Stellar Turbulence", MainTopic: intp(1)},
		{Filename: "d.pdf", Title: "Galaxy Surveys", MainTopic: intp(2)},
	}
	a := graph.NewAssembler(papers, graph.WithIDGenerator(graph.SequentialIDs()))
	a.AddPapers(papers)
	a.AddTopicSimilarities("1", []similarity.Pair{
		{Paper1: "a.pdf", Paper2: "b.pdf", Similarity: 0.8},
		{Paper1: "a.pdf", Paper2: "c.pdf", Similarity: 0.1},
		{Paper1: "b.pdf", Paper2: "c.pdf", Similarity: 0.05},
	})

	tmpDir := t.TempDir()
	graphPath := filepath.Join(tmpDir, "kg.json")
	if err := graph.Save(graphPath, a.Graph(), ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	db, err := OpenDB(filepath.Join(tmpDir, "kg.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RebuildFromFile(graphPath); err != nil {
		t.Fatalf("Failed to rebuild DB: %v", err)
	}
	return db, tmpDir
}

func TestOpenDB_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("OpenDB() did not create database file")
	}
}

func TestDB_Rebuild(t *testing.T) {
	db, _ := setupTestDB(t)

	tests := []struct {
		typ  graph.NodeType
		want int
	}{
		{graph.TypePaper, 4},
		{graph.TypeTopic, 1},
		{graph.TypeTopicBelonging, 3},
		{"", 8},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := db.Count(tt.typ)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.typ, got, tt.want)
			}
		})
	}

	// Rebuilding replaces everything.
	g := graph.New(graph.SequentialIDs())
	g.AddNode(graph.TypePaper, graph.Attr{Predicate: graph.PredHasTitle, Value: "Only"})
	n, err := db.RebuildFromGraph(g)
	if err != nil {
		t.Fatalf("RebuildFromGraph() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RebuildFromGraph() = %d, want 1", n)
	}
	if got, _ := db.Count(""); got != 1 {
		t.Errorf("after rebuild Count() = %d, want 1", got)
	}
}

func TestDB_SimilarPapers(t *testing.T) {
	db, _ := setupTestDB(t)

	tests := []struct {
		title string
		want  []string
	}{
		{"Variational Bayesian Phylogenetics", []string{"Stellar Turbulence", "Tree Priors for Phylogenetics"}},
		{"  stellar turbulence ", []string{"Tree Priors for Phylogenetics", "Variational Bayesian Phylogenetics"}},
		{"Galaxy Surveys", nil},
		{"No Such Paper", nil},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			hits, err := db.SimilarPapers(tt.title)
			if err != nil {
				t.Fatalf("SimilarPapers() error = %v", err)
			}
			var got []string
			for _, h := range hits {
				got = append(got, h.Title)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SimilarPapers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SimilarPapers()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDB_PapersForTopic(t *testing.T) {
	db, _ := setupTestDB(t)

	tests := []struct {
		name string
		min  float64
		want []string
	}{
		{"all", 0, []string{"a.pdf", "b.pdf", "c.pdf"}},
		{"threshold", 0.5, []string{"a.pdf", "b.pdf"}},
		{"above every score", 0.9, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := db.PapersForTopic("1", tt.min)
			if err != nil {
				t.Fatalf("PapersForTopic() error = %v", err)
			}
			if len(hits) != len(tt.want) {
				t.Fatalf("PapersForTopic() = %+v, want %v", hits, tt.want)
			}
			for i, h := range hits {
				if h.Filename != tt.want[i] {
					t.Errorf("hit %d = %s, want %s", i, h.Filename, tt.want[i])
				}
				if h.Percentage < tt.min {
					t.Errorf("hit %d percentage %v below %v", i, h.Percentage, tt.min)
				}
			}
		})
	}

	hits, _ := db.PapersForTopic("2", 0)
	if len(hits) != 0 {
		t.Errorf("topic without similarity file returned %v", hits)
	}
}

func TestDB_FindPapersByTitle(t *testing.T) {
	db, _ := setupTestDB(t)

	hits, err := db.FindPapersByTitle("galaxy surveys", 10)
	if err != nil {
		t.Fatalf("FindPapersByTitle() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Filename != "d.pdf" {
		t.Errorf("exact match = %+v", hits)
	}

	hits, err = db.FindPapersByTitle("phylogenetics", 10)
	if err != nil {
		t.Fatalf("FindPapersByTitle() error = %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("full-text fallback = %+v, want 2 hits", hits)
	}

	p, err := db.GetPaper(hits[0].ID)
	if err != nil || p == nil || p.Title != hits[0].Title {
		t.Errorf("GetPaper() = %+v, %v", p, err)
	}
	if p, _ := db.GetPaper("Paper_99"); p != nil {
		t.Errorf("GetPaper(missing) = %+v", p)
	}
}

func TestDB_ListTopics(t *testing.T) {
	db, _ := setupTestDB(t)
	topics, err := db.ListTopics()
	if err != nil {
		t.Fatalf("ListTopics() error = %v", err)
	}
	if len(topics) != 1 || topics[0] != "1" {
		t.Errorf("ListTopics() = %v", topics)
	}
}

func TestPrepareFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"tree priors", `"tree" "priors"`},
		{`say "hi"`, `"say" """hi"""`},
	}
	for _, tt := range tests {
		if got := prepareFTSQuery(tt.in); got != tt.want {
			t.Errorf("prepareFTSQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
