package viz

import (
	"strings"

	"github.com/matsen/paperkg/internal/graph"
)

// BuildOptions selects what part of the graph to display.
type BuildOptions struct {
	// HideReferences drops cited-work nodes that are not corpus papers.
	HideReferences bool
	// CollapseMemberships replaces each TopicBelonging node with a direct
	// paper-to-topic edge labelled with its percentage.
	CollapseMemberships bool
	// MaxLabel truncates labels to this many runes; 0 keeps them whole.
	MaxLabel int
}

// DefaultBuildOptions returns the options used by the CLI.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{CollapseMemberships: true, MaxLabel: 40}
}

// BuildGraphData converts g into display nodes and edges with connection
// counts for sizing.
func BuildGraphData(g *graph.Graph, opts BuildOptions) *GraphData {
	hidden := make(map[string]bool)
	for _, n := range g.Nodes() {
		if opts.HideReferences && isReference(n) {
			hidden[n.ID] = true
		}
		if opts.CollapseMemberships && n.Type == graph.TypeTopicBelonging {
			hidden[n.ID] = true
		}
	}

	var edges []Edge
	if opts.CollapseMemberships {
		edges = append(edges, collapseMemberships(g, hidden)...)
	}
	for _, e := range g.Edges() {
		if hidden[e.Subject] || hidden[e.Object] {
			continue
		}
		edges = append(edges, Edge{Source: e.Subject, Target: e.Object, RelationshipType: e.Predicate})
	}

	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.Source]++
		counts[e.Target]++
	}

	nodes := make([]Node, 0, len(g.Nodes()))
	for _, n := range g.Nodes() {
		if hidden[n.ID] {
			continue
		}
		nodes = append(nodes, newNode(n, counts[n.ID], opts.MaxLabel))
	}
	return &GraphData{Nodes: nodes, Edges: edges}
}

// isReference reports whether n is a cited work rather than a corpus paper.
func isReference(n *graph.Node) bool {
	if n.Type != graph.TypePaper {
		return false
	}
	_, corpus := n.Attr(graph.PredHasFilename)
	return !corpus
}

// collapseMemberships turns each visible membership into an in_topic edge.
func collapseMemberships(g *graph.Graph, hidden map[string]bool) []Edge {
	var out []Edge
	for _, tb := range g.NodesOfType(graph.TypeTopicBelonging) {
		var paperID, topicID string
		for _, e := range g.EdgesFrom(tb.ID) {
			switch e.Predicate {
			case graph.PredHasPaper:
				paperID = e.Object
			case graph.PredHasTopic:
				topicID = e.Object
			}
		}
		if paperID == "" || topicID == "" || hidden[paperID] || hidden[topicID] {
			continue
		}
		pct, _ := tb.Attr(graph.PredHasPercentage)
		out = append(out, Edge{Source: paperID, Target: topicID, RelationshipType: "in_topic", Summary: pct})
	}
	return out
}

// labelPredicates picks the attribute shown as a node's label, by type.
var labelPredicates = map[graph.NodeType][]string{
	graph.TypePaper:          {graph.PredHasTitle, graph.PredHasIdentifier},
	graph.TypePerson:         {graph.PredHasName},
	graph.TypeOrganization:   {"has_name_organization"},
	graph.TypeProject:        {"has_id_project"},
	graph.TypeTopic:          {graph.PredHasNameTopic},
	graph.TypeTopicBelonging: {graph.PredHasPercentage},
}

func newNode(n *graph.Node, connections, maxLabel int) Node {
	label := n.ID
	for _, pred := range labelPredicates[n.Type] {
		if v, ok := n.Attr(pred); ok && v != "" {
			label = v
			break
		}
	}
	if n.Type == graph.TypeTopic {
		label = "Topic " + label
	}

	details := make([]string, 0, len(n.Attrs))
	for _, a := range n.Attrs {
		details = append(details, strings.TrimPrefix(a.Predicate, "has_")+": "+a.Value)
	}

	return Node{
		ID:              n.ID,
		Type:            strings.ToLower(string(n.Type)),
		Label:           truncate(label, maxLabel),
		Details:         details,
		ConnectionCount: connections,
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
