package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type document struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// WriteJSON serializes g as {"nodes": [...], "edges": [...]}.
func WriteJSON(w io.Writer, g *Graph) error {
	doc := document{Nodes: g.nodes, Edges: g.edges}
	if doc.Nodes == nil {
		doc.Nodes = []*Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadJSON parses a graph written by WriteJSON.
func ReadJSON(r io.Reader) (*Graph, []OrphanedEdge, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decoding graph: %w", err)
	}
	g, orphaned := FromParts(doc.Nodes, doc.Edges)
	return g, orphaned, nil
}

// IsTurtle reports whether path names a Turtle file.
func IsTurtle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".ttl" || ext == ".turtle"
}

// Save writes g to path, as Turtle for .ttl files and JSON otherwise.
// The file is replaced atomically.
func Save(path string, g *Graph, base string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if IsTurtle(path) {
		err = WriteTurtle(tmp, g, base)
	} else {
		err = WriteJSON(tmp, g)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads a graph saved by Save.
func Load(path string) (*Graph, []OrphanedEdge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	if IsTurtle(path) {
		return ReadTurtle(f)
	}
	return ReadJSON(f)
}
