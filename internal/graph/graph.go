// Package graph holds the typed knowledge graph built from the pipeline
// artifacts and its serializations.
package graph

import (
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NodeType is the class of a node.
type NodeType string

const (
	TypePaper          NodeType = "Paper"
	TypePerson         NodeType = "Person"
	TypeOrganization   NodeType = "Organization"
	TypeProject        NodeType = "Project"
	TypeTopic          NodeType = "Topic"
	TypeTopicBelonging NodeType = "TopicBelonging"
)

// NodeTypes lists every node class in a stable order.
var NodeTypes = []NodeType{TypePaper, TypePerson, TypeOrganization, TypeProject, TypeTopic, TypeTopicBelonging}

// Edge predicates.
const (
	PredHasAuthor    = "has_author"
	PredReferences   = "references"
	PredAcknowledges = "acknowledges"
	PredSimilarTo    = "similar_to"
	PredHasTopic     = "has_topic"
	PredHasPaper     = "has_paper"
)

// Attribute predicates written by the assembler.
const (
	PredHasTitle       = "has_title"
	PredHasDate        = "has_date"
	PredHasFilename    = "has_filename"
	PredHasIdentifier  = "has_identifier"
	PredHasName        = "has_name"
	PredHasGivenName   = "has_given_name"
	PredHasFamilyName  = "has_family_name"
	PredHasORCID       = "has_orcid"
	PredHasAffiliation = "has_affiliation"
	PredHasWorkCount   = "has_work_count"
	PredHasNameTopic   = "has_name_topic"
	PredHasPercentage  = "has_percentage"
)

// Datatype is the literal type of an attribute value.
type Datatype string

const (
	String  Datatype = ""
	Decimal Datatype = "decimal"
	Integer Datatype = "integer"
	AnyURI  Datatype = "anyURI"
)

// Attr is a literal-valued property of a node.
type Attr struct {
	Predicate string   `json:"predicate"`
	Value     string   `json:"value"`
	Datatype  Datatype `json:"datatype,omitempty"`
}

// DecimalAttr formats f as a decimal literal.
func DecimalAttr(pred string, f float64) Attr {
	return Attr{Predicate: pred, Value: strconv.FormatFloat(f, 'f', -1, 64), Datatype: Decimal}
}

// Node is a typed vertex with ordered attributes.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Attrs []Attr   `json:"attrs"`
}

// Attr returns the first value of pred.
func (n *Node) Attr(pred string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Predicate == pred {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr replaces every value of a's predicate with a.
func (n *Node) SetAttr(a Attr) {
	kept := n.Attrs[:0]
	for _, old := range n.Attrs {
		if old.Predicate != a.Predicate {
			kept = append(kept, old)
		}
	}
	n.Attrs = append(kept, a)
}

// Edge is a directed node-to-node relationship.
type Edge struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Validation errors.
var (
	ErrEmptySubject   = errors.New("subject is required")
	ErrEmptyObject    = errors.New("object is required")
	ErrEmptyPredicate = errors.New("predicate is required")
	ErrSelfEdge       = errors.New("subject and object cannot be the same")
	ErrUnknownNode    = errors.New("edge endpoint is not a node of the graph")
)

// Validate checks the edge's required fields.
func (e Edge) Validate() error {
	if e.Subject == "" {
		return ErrEmptySubject
	}
	if e.Object == "" {
		return ErrEmptyObject
	}
	if e.Predicate == "" {
		return ErrEmptyPredicate
	}
	if e.Subject == e.Object {
		return ErrSelfEdge
	}
	return nil
}

// symmetric predicates are stored once per unordered pair.
var symmetric = map[string]bool{PredSimilarTo: true}

func (e Edge) key() Edge {
	if symmetric[e.Predicate] && e.Object < e.Subject {
		return Edge{Subject: e.Object, Predicate: e.Predicate, Object: e.Subject}
	}
	return e
}

// IDGenerator returns a fresh node identifier for a node of type t.
type IDGenerator func(t NodeType) string

// RandomIDs names nodes by type and a random UUID. Identifiers are never
// reused across runs.
func RandomIDs(t NodeType) string {
	return string(t) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SequentialIDs numbers nodes per type starting at 1.
func SequentialIDs() IDGenerator {
	next := make(map[NodeType]int)
	return func(t NodeType) string {
		next[t]++
		return string(t) + "_" + strconv.Itoa(next[t])
	}
}

// Graph is an insertion-ordered set of nodes and edges.
type Graph struct {
	newID IDGenerator
	nodes []*Node
	byID  map[string]*Node
	edges []Edge
	seen  map[Edge]bool
}

// New returns an empty graph naming nodes with ids.
func New(ids IDGenerator) *Graph {
	if ids == nil {
		ids = RandomIDs
	}
	return &Graph{
		newID: ids,
		byID:  make(map[string]*Node),
		seen:  make(map[Edge]bool),
	}
}

// AddNode creates a node of type t with a fresh identifier.
func (g *Graph) AddNode(t NodeType, attrs ...Attr) *Node {
	n := &Node{ID: g.newID(t), Type: t, Attrs: attrs}
	g.insert(n)
	return n
}

func (g *Graph) insert(n *Node) {
	if n.Attrs == nil {
		n.Attrs = []Attr{}
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.ID] = n
}

// AddEdge links two existing nodes. It reports false without error when
// the edge is already present.
func (g *Graph) AddEdge(subject, predicate, object string) (bool, error) {
	e := Edge{Subject: subject, Predicate: predicate, Object: object}
	if err := e.Validate(); err != nil {
		return false, err
	}
	if g.byID[subject] == nil || g.byID[object] == nil {
		return false, ErrUnknownNode
	}
	if g.seen[e.key()] {
		return false, nil
	}
	g.seen[e.key()] = true
	g.edges = append(g.edges, e)
	return true, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

// NodesOfType returns the nodes of type t in insertion order.
func (g *Graph) NodesOfType(t NodeType) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// EdgesFrom returns the outgoing edges of id in insertion order.
func (g *Graph) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Subject == id {
			out = append(out, e)
		}
	}
	return out
}

// Counts tallies nodes by type and edges by predicate.
type Counts struct {
	Nodes map[NodeType]int `json:"nodes"`
	Edges map[string]int   `json:"edges"`
}

// Counts summarizes the graph.
func (g *Graph) Counts() Counts {
	c := Counts{Nodes: make(map[NodeType]int), Edges: make(map[string]int)}
	for _, n := range g.nodes {
		c.Nodes[n.Type]++
	}
	for _, e := range g.edges {
		c.Edges[e.Predicate]++
	}
	return c
}

// OrphanedEdge is an edge read from a file whose endpoint is missing.
type OrphanedEdge struct {
	Edge
	Reason string `json:"reason"` // "missing_subject", "missing_object", or "missing_both"
}

// DetectOrphanedEdges splits edges into those whose endpoints are both in
// nodes and those that reference unknown nodes.
func DetectOrphanedEdges(edges []Edge, nodes map[string]bool) (orphaned []OrphanedEdge, valid []Edge) {
	for _, e := range edges {
		subjectOK, objectOK := nodes[e.Subject], nodes[e.Object]
		switch {
		case subjectOK && objectOK:
			valid = append(valid, e)
		case !subjectOK && !objectOK:
			orphaned = append(orphaned, OrphanedEdge{Edge: e, Reason: "missing_both"})
		case !subjectOK:
			orphaned = append(orphaned, OrphanedEdge{Edge: e, Reason: "missing_subject"})
		default:
			orphaned = append(orphaned, OrphanedEdge{Edge: e, Reason: "missing_object"})
		}
	}
	return orphaned, valid
}

// FromParts rebuilds a graph from deserialized nodes and edges. Duplicate
// node ids keep the first node. Orphaned edges are returned; invalid and
// duplicate edges are dropped.
func FromParts(nodes []*Node, edges []Edge) (*Graph, []OrphanedEdge) {
	g := New(nil)
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil || n.ID == "" || ids[n.ID] {
			continue
		}
		ids[n.ID] = true
		g.insert(n)
	}
	orphaned, valid := DetectOrphanedEdges(edges, ids)
	for _, e := range valid {
		_, _ = g.AddEdge(e.Subject, e.Predicate, e.Object)
	}
	return g, orphaned
}
