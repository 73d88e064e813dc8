package viz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"slices"
)

var (
	pageTemplate  = template.Must(template.New("page").Parse(pageHTML))
	emptyTemplate = template.Must(template.New("empty").Parse(emptyHTML))
)

// HTMLOptions configures HTML generation.
type HTMLOptions struct {
	Layout string // "force", "circle", or "grid"
	Title  string
	// ScriptURL is where the page loads Cytoscape.js from.
	ScriptURL string
}

// DefaultScriptURL is the CDN copy of Cytoscape.js.
const DefaultScriptURL = "https://unpkg.com/cytoscape@3/dist/cytoscape.min.js"

// DefaultOptions returns default HTML generation options.
func DefaultOptions() HTMLOptions {
	return HTMLOptions{
		Layout:    "force",
		Title:     "Paper Knowledge Graph",
		ScriptURL: DefaultScriptURL,
	}
}

// ValidLayouts lists the supported layout algorithm names.
var ValidLayouts = []string{"force", "circle", "grid"}

var cytoscapeLayouts = map[string]string{
	"":       "cose",
	"force":  "cose",
	"circle": "circle",
	"grid":   "grid",
}

// nodeStyle is the look of one node type. A node grows from MinSize to
// MaxSize as its connection count approaches Saturation.
type nodeStyle struct {
	Type       string
	Color      string
	Shape      string
	MinSize    int
	MaxSize    int
	Saturation int
}

var nodeStyles = []nodeStyle{
	{Type: "paper", Color: "#3b7dd8", Shape: "ellipse", MinSize: 18, MaxSize: 44, Saturation: 20},
	{Type: "person", Color: "#8a9399", Shape: "ellipse", MinSize: 14, MaxSize: 24, Saturation: 10},
	{Type: "organization", Color: "#e0862d", Shape: "diamond", MinSize: 22, MaxSize: 50, Saturation: 10},
	{Type: "project", Color: "#2e9e5b", Shape: "hexagon", MinSize: 22, MaxSize: 50, Saturation: 10},
	{Type: "topic", Color: "#8e4fb0", Shape: "round-rectangle", MinSize: 36, MaxSize: 80, Saturation: 30},
	{Type: "topicbelonging", Color: "#cdb0dc", Shape: "ellipse", MinSize: 8, MaxSize: 12, Saturation: 5},
}

// edgeStyles colors relationships; unlisted ones use the default gray.
var edgeStyles = map[string]map[string]any{
	"similar_to":   {"line-color": "#3b7dd8", "target-arrow-shape": "none", "width": 2},
	"acknowledges": {"line-color": "#e0862d", "target-arrow-color": "#e0862d"},
	"in_topic":     {"line-color": "#8e4fb0", "target-arrow-color": "#8e4fb0", "line-style": "dashed"},
	"has_topic":    {"line-color": "#8e4fb0", "target-arrow-color": "#8e4fb0", "line-style": "dashed"},
	"references":   {"line-color": "#c4cbcf", "target-arrow-color": "#c4cbcf"},
}

type rule struct {
	Selector string         `json:"selector"`
	Style    map[string]any `json:"style"`
}

// stylesheet builds the Cytoscape.js style rules from the node and edge
// palettes.
func stylesheet() []rule {
	rules := []rule{{
		Selector: "node",
		Style: map[string]any{
			"label":         "data(label)",
			"font-size":     "9px",
			"color":         "#333",
			"text-valign":   "bottom",
			"text-margin-y": "4px",
		},
	}}
	for _, s := range nodeStyles {
		size := fmt.Sprintf("mapData(connectionCount, 0, %d, %d, %d)", s.Saturation, s.MinSize, s.MaxSize)
		rules = append(rules, rule{
			Selector: fmt.Sprintf(`node[type=%q]`, s.Type),
			Style: map[string]any{
				"background-color": s.Color,
				"shape":            s.Shape,
				"width":            size,
				"height":           size,
			},
		})
	}
	rules = append(rules,
		rule{Selector: `node[type="topic"]`, Style: map[string]any{"font-size": "12px", "font-weight": "bold", "text-valign": "center"}},
		rule{Selector: `node[type="topicbelonging"]`, Style: map[string]any{"font-size": "6px"}},
		rule{Selector: "edge", Style: map[string]any{
			"width":              1,
			"line-color":         "#9aa5a8",
			"target-arrow-color": "#9aa5a8",
			"target-arrow-shape": "triangle",
			"curve-style":        "bezier",
		}},
	)

	rels := make([]string, 0, len(edgeStyles))
	for rel := range edgeStyles {
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	for _, rel := range rels {
		rules = append(rules, rule{Selector: fmt.Sprintf(`edge[relationshipType=%q]`, rel), Style: edgeStyles[rel]})
	}

	return append(rules,
		rule{Selector: ".focus", Style: map[string]any{"border-width": 3, "border-color": "#d9534f"}},
		rule{Selector: ".faded", Style: map[string]any{"opacity": 0.2}},
		rule{Selector: ".hidden", Style: map[string]any{"display": "none"}},
	)
}

type legendEntry struct {
	Type  string
	Color string
	Count int
}

type pageData struct {
	Title     string
	ScriptURL string
	Layout    string
	Elements  template.JS
	Style     template.JS
	Legend    []legendEntry
}

// GenerateHTML renders a self-contained page for the graph. The page has a
// legend that toggles node types and a search box that focuses matching
// labels.
func GenerateHTML(graph *GraphData, opts HTMLOptions) (string, error) {
	if graph == nil {
		return "", fmt.Errorf("graph cannot be nil")
	}
	layout, ok := cytoscapeLayouts[opts.Layout]
	if !ok {
		return "", fmt.Errorf("invalid layout %q: must be force, circle, or grid", opts.Layout)
	}
	if opts.Title == "" {
		opts.Title = DefaultOptions().Title
	}
	if opts.ScriptURL == "" {
		opts.ScriptURL = DefaultScriptURL
	}

	var buf bytes.Buffer
	if graph.IsEmpty() {
		if err := emptyTemplate.Execute(&buf, opts); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	elements, err := graph.ToCytoscapeJSON()
	if err != nil {
		return "", err
	}
	style, err := json.Marshal(stylesheet())
	if err != nil {
		return "", fmt.Errorf("marshaling stylesheet: %w", err)
	}

	data := pageData{
		Title:     opts.Title,
		ScriptURL: opts.ScriptURL,
		Layout:    layout,
		Elements:  template.JS(elements),
		Style:     template.JS(style),
		Legend:    legend(graph),
	}
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// legend lists the styled node types present in the graph.
func legend(graph *GraphData) []legendEntry {
	counts := make(map[string]int)
	for _, n := range graph.Nodes {
		counts[n.Type]++
	}
	var entries []legendEntry
	for _, s := range nodeStyles {
		if counts[s.Type] > 0 {
			entries = append(entries, legendEntry{Type: s.Type, Color: s.Color, Count: counts[s.Type]})
		}
	}
	return entries
}

const emptyHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}} (empty)</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; height: 100vh; display: grid; place-items: center; color: #555; }
  code { background: #eee; padding: 1px 5px; border-radius: 3px; }
</style>
</head>
<body>
<div>
  <h2>No graph data</h2>
  <p>Build the graph with <code>kg graph</code> or <code>kg run</code>, then render it again.</p>
</div>
</body>
</html>`

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<script src="{{.ScriptURL}}"></script>
<style>
  html, body { margin: 0; height: 100%; font-family: system-ui, sans-serif; font-size: 13px; }
  #app { display: flex; height: 100%; }
  #panel { width: 220px; padding: 12px; border-right: 1px solid #ddd; background: #fafafa; overflow-y: auto; }
  #panel h1 { font-size: 15px; margin: 0 0 10px; }
  #panel input[type=search] { width: 100%; margin-bottom: 12px; }
  #panel label { display: flex; align-items: center; gap: 6px; margin: 4px 0; }
  .swatch { width: 10px; height: 10px; border-radius: 2px; display: inline-block; }
  #info { margin-top: 16px; color: #444; word-wrap: break-word; }
  #info .kind { text-transform: uppercase; font-size: 10px; color: #888; }
  #info .name { font-weight: 600; margin: 2px 0 6px; }
  #info div { margin: 2px 0; }
  #cy { flex: 1; }
</style>
</head>
<body>
<div id="app">
  <div id="panel">
    <h1>{{.Title}}</h1>
    <input type="search" id="search" placeholder="Find by label">
    {{range .Legend}}<label><input type="checkbox" data-type="{{.Type}}" checked><span class="swatch" style="background: {{.Color}}"></span>{{.Type}} ({{.Count}})</label>
    {{end}}<div id="info">Click a node or edge for details.</div>
  </div>
  <div id="cy"></div>
</div>
<script>
(function () {
  var cy = cytoscape({
    container: document.getElementById("cy"),
    elements: {{.Elements}},
    style: {{.Style}},
    layout: { name: {{.Layout}}, animate: false, nodeRepulsion: 8000, idealEdgeLength: 100 }
  });
  var info = document.getElementById("info");

  function text(s) {
    var d = document.createElement("div");
    d.textContent = s;
    return d;
  }

  function describe(kind, name, lines) {
    info.replaceChildren();
    var k = text(kind); k.className = "kind";
    var n = text(name); n.className = "name";
    info.append(k, n);
    lines.forEach(function (l) { info.append(text(l)); });
  }

  function focus(ele) {
    cy.elements().removeClass("focus faded");
    var near = ele.isNode() ? ele.closedNeighborhood() : ele.connectedNodes().add(ele);
    near.addClass("focus");
    cy.elements().not(near).addClass("faded");
  }

  cy.on("tap", "node", function (evt) {
    var d = evt.target.data();
    describe(d.type, d.label, (d.details || []).concat(["connections: " + d.connectionCount]));
    focus(evt.target);
  });

  cy.on("tap", "edge", function (evt) {
    var d = evt.target.data();
    var lines = [d.source + " -> " + d.target];
    if (d.summary) lines.push(d.summary);
    describe(d.relationshipType, "", lines);
    focus(evt.target);
  });

  cy.on("tap", function (evt) {
    if (evt.target === cy) cy.elements().removeClass("focus faded");
  });

  document.querySelectorAll("#panel input[type=checkbox]").forEach(function (box) {
    box.addEventListener("change", function () {
      var nodes = cy.nodes("[type = '" + box.dataset.type + "']");
      if (box.checked) nodes.removeClass("hidden"); else nodes.addClass("hidden");
    });
  });

  document.getElementById("search").addEventListener("input", function (evt) {
    var q = evt.target.value.trim().toLowerCase();
    cy.elements().removeClass("focus faded");
    if (!q) return;
    var hits = cy.nodes().filter(function (n) {
      return (n.data("label") || "").toLowerCase().indexOf(q) >= 0;
    });
    hits.addClass("focus");
    cy.elements().not(hits).addClass("faded");
  });
})();
</script>
</body>
</html>`
