// Package storage is the ephemeral SQLite query store rebuilt from a
// serialized knowledge graph.
package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/logger"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);

		-- One row per literal; a node may repeat a predicate.
		CREATE TABLE IF NOT EXISTS attrs (
			node_id TEXT NOT NULL,
			predicate TEXT NOT NULL,
			value TEXT NOT NULL,
			datatype TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_attrs_node ON attrs(node_id, predicate);
		CREATE INDEX IF NOT EXISTS idx_attrs_value ON attrs(predicate, value COLLATE NOCASE);

		CREATE TABLE IF NOT EXISTS links (
			subject TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object TEXT NOT NULL,
			PRIMARY KEY (subject, predicate, object)
		);
		CREATE INDEX IF NOT EXISTS idx_links_object ON links(object, predicate);

		CREATE VIRTUAL TABLE IF NOT EXISTS titles_fts USING fts5(
			id,
			title
		);
	`
	_, err := db.Exec(schema)
	return err
}

// RebuildFromGraph clears the database and loads g into it.
func (d *DB) RebuildFromGraph(g *graph.Graph) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "attrs", "links", "titles_fts"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	nodeStmt, err := tx.Prepare(`INSERT INTO nodes (id, type) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing nodes insert: %w", err)
	}
	defer nodeStmt.Close()
	attrStmt, err := tx.Prepare(`INSERT INTO attrs (node_id, predicate, value, datatype) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing attrs insert: %w", err)
	}
	defer attrStmt.Close()
	linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (subject, predicate, object) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing links insert: %w", err)
	}
	defer linkStmt.Close()
	ftsStmt, err := tx.Prepare(`INSERT INTO titles_fts (id, title) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, n := range g.Nodes() {
		if _, err := nodeStmt.Exec(n.ID, string(n.Type)); err != nil {
			return 0, fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
		for _, a := range n.Attrs {
			if _, err := attrStmt.Exec(n.ID, a.Predicate, a.Value, string(a.Datatype)); err != nil {
				return 0, fmt.Errorf("inserting %s of %s: %w", a.Predicate, n.ID, err)
			}
		}
		if title, ok := n.Attr(graph.PredHasTitle); ok && n.Type == graph.TypePaper {
			if _, err := ftsStmt.Exec(n.ID, title); err != nil {
				return 0, fmt.Errorf("inserting fts for %s: %w", n.ID, err)
			}
		}
	}
	for _, e := range g.Edges() {
		if _, err := linkStmt.Exec(e.Subject, e.Predicate, e.Object); err != nil {
			return 0, fmt.Errorf("inserting %s edge: %w", e.Predicate, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(g.Nodes()), nil
}

// RebuildFromFile loads a saved graph and rebuilds the database from it.
func (d *DB) RebuildFromFile(path string) (int, error) {
	g, orphaned, err := graph.Load(path)
	if err != nil {
		return 0, fmt.Errorf("reading graph: %w", err)
	}
	for _, o := range orphaned {
		logger.Warn("dropping orphaned edge", "subject", o.Subject, "predicate", o.Predicate, "object", o.Object, "reason", o.Reason)
	}
	return d.RebuildFromGraph(g)
}

// Count returns the number of nodes of type t, or of all types when t is empty.
func (d *DB) Count(t graph.NodeType) (int, error) {
	var count int
	var err error
	if t == "" {
		err = d.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	} else {
		err = d.db.QueryRow("SELECT COUNT(*) FROM nodes WHERE type = ?", string(t)).Scan(&count)
	}
	return count, err
}

// PaperHit is a paper node returned by a query.
type PaperHit struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename,omitempty"`
	Date     string `json:"date,omitempty"`
}

// selectPaperFields selects a PaperHit for the node aliased p.
const selectPaperFields = `p.id,
	COALESCE((SELECT value FROM attrs WHERE node_id = p.id AND predicate = 'has_title' LIMIT 1), ''),
	COALESCE((SELECT value FROM attrs WHERE node_id = p.id AND predicate = 'has_filename' LIMIT 1), ''),
	COALESCE((SELECT value FROM attrs WHERE node_id = p.id AND predicate = 'has_date' LIMIT 1), '')`

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner, extra ...any) (PaperHit, error) {
	var h PaperHit
	err := s.Scan(append([]any{&h.ID, &h.Title, &h.Filename, &h.Date}, extra...)...)
	return h, err
}

// GetPaper returns the paper node with the given id, or nil.
func (d *DB) GetPaper(id string) (*PaperHit, error) {
	row := d.db.QueryRow(`SELECT `+selectPaperFields+` FROM nodes p WHERE p.id = ? AND p.type = 'Paper'`, id)
	h, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// FindPapersByTitle returns the papers whose title equals title, ignoring
// case. When none does, it falls back to a full-text title search.
func (d *DB) FindPapersByTitle(title string, limit int) ([]PaperHit, error) {
	rows, err := d.db.Query(`
		SELECT `+selectPaperFields+`
		FROM nodes p
		JOIN attrs a ON a.node_id = p.id
		WHERE p.type = 'Paper' AND a.predicate = 'has_title' AND a.value = ? COLLATE NOCASE
		ORDER BY p.id
		LIMIT ?`, strings.TrimSpace(title), limit)
	if err != nil {
		return nil, fmt.Errorf("finding title: %w", err)
	}
	hits, err := scanPapers(rows)
	if err != nil || len(hits) > 0 {
		return hits, err
	}

	ftsQuery := prepareFTSQuery(title)
	if ftsQuery == "" {
		return nil, nil
	}
	rows, err = d.db.Query(`
		SELECT `+selectPaperFields+`
		FROM nodes p
		WHERE p.id IN (SELECT id FROM titles_fts WHERE titles_fts MATCH ?)
		ORDER BY p.id
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching titles: %w", err)
	}
	return scanPapers(rows)
}

// SimilarPapers returns the papers linked by similar_to, in either
// direction, to any paper titled title.
func (d *DB) SimilarPapers(title string) ([]PaperHit, error) {
	rows, err := d.db.Query(`
		WITH src AS (
			SELECT node_id AS id FROM attrs
			WHERE predicate = 'has_title' AND value = ? COLLATE NOCASE
		), other AS (
			SELECT object AS id FROM links WHERE predicate = 'similar_to' AND subject IN (SELECT id FROM src)
			UNION
			SELECT subject AS id FROM links WHERE predicate = 'similar_to' AND object IN (SELECT id FROM src)
		)
		SELECT `+selectPaperFields+`
		FROM nodes p
		WHERE p.id IN (SELECT id FROM other) AND p.id NOT IN (SELECT id FROM src)
		ORDER BY 2, p.id`, strings.TrimSpace(title))
	if err != nil {
		return nil, fmt.Errorf("querying similar papers: %w", err)
	}
	return scanPapers(rows)
}

// TopicHit is a paper in a topic with its membership strength.
type TopicHit struct {
	PaperHit
	Percentage float64 `json:"percentage"`
}

// PapersForTopic returns the papers whose membership in the topic named
// name is at least minPercentage, strongest first.
func (d *DB) PapersForTopic(name string, minPercentage float64) ([]TopicHit, error) {
	rows, err := d.db.Query(`
		SELECT `+selectPaperFields+`, CAST(pct.value AS REAL)
		FROM nodes t
		JOIN attrs tn ON tn.node_id = t.id AND tn.predicate = 'has_name_topic'
		JOIN links ht ON ht.object = t.id AND ht.predicate = 'has_topic'
		JOIN links hp ON hp.subject = ht.subject AND hp.predicate = 'has_paper'
		JOIN attrs pct ON pct.node_id = ht.subject AND pct.predicate = 'has_percentage'
		JOIN nodes p ON p.id = hp.object
		WHERE t.type = 'Topic' AND tn.value = ? AND CAST(pct.value AS REAL) >= ?
		ORDER BY CAST(pct.value AS REAL) DESC, p.id`, name, minPercentage)
	if err != nil {
		return nil, fmt.Errorf("querying topic %s: %w", name, err)
	}
	defer rows.Close()

	var hits []TopicHit
	for rows.Next() {
		var h TopicHit
		h.PaperHit, err = scanPaper(rows, &h.Percentage)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ListTopics returns the topic names in the graph.
func (d *DB) ListTopics() ([]string, error) {
	rows, err := d.db.Query(`
		SELECT a.value FROM nodes t
		JOIN attrs a ON a.node_id = t.id AND a.predicate = 'has_name_topic'
		WHERE t.type = 'Topic'
		ORDER BY CAST(a.value AS INTEGER), a.value`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanPapers(rows *sql.Rows) ([]PaperHit, error) {
	defer rows.Close()
	var hits []PaperHit
	for rows.Next() {
		h, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// prepareFTSQuery quotes each term so FTS5 matches titles containing all
// of them, whatever punctuation the input carries.
func prepareFTSQuery(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		terms = append(terms, "\""+strings.ReplaceAll(f, "\"", "\"\"")+"\"")
	}
	return strings.Join(terms, " ")
}
