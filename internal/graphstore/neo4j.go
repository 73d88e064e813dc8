// Package graphstore exports an assembled graph to a Neo4j-compatible
// database (Neo4j or Memgraph) over Bolt.
package graphstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/logger"
)

// Driver runs one Cypher query.
type Driver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
	Close(ctx context.Context) error
}

// BoltDriver is a Driver backed by neo4j-go-driver.
type BoltDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewBoltDriver connects to uri and verifies connectivity. An empty
// database uses the server default.
func NewBoltDriver(ctx context.Context, uri, username, password, database string) (*BoltDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating driver: %w", err)
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		d.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", uri, err)
	}
	return &BoltDriver{driver: d, database: database}, nil
}

// ExecuteQuery runs query in its own managed transaction.
func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if d.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(d.database))
	}
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("executing query: %w", err)
	}
	return *result, nil
}

// Close releases the driver's connections.
func (d *BoltDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Stats counts what an export wrote.
type Stats struct {
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
	Queries       int `json:"queries"`
}

// Exporter writes graphs through a Driver.
type Exporter struct {
	driver    Driver
	batchSize int
	clear     bool
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithBatchSize sets the number of rows sent per UNWIND query.
func WithBatchSize(n int) ExporterOption {
	return func(e *Exporter) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClear deletes every node of the graph's types before writing.
func WithClear(clear bool) ExporterOption {
	return func(e *Exporter) {
		e.clear = clear
	}
}

// NewExporter returns an exporter over driver.
func NewExporter(driver Driver, opts ...ExporterOption) *Exporter {
	e := &Exporter{driver: driver, batchSize: 500}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RelationshipType maps an edge predicate to a Cypher relationship type.
func RelationshipType(predicate string) string {
	return strings.ToUpper(predicate)
}

// Export MERGEs every node by id under its type label and every edge as a
// relationship named after its predicate. Re-exporting the same graph is
// idempotent.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph) (Stats, error) {
	var st Stats

	for _, t := range graph.NodeTypes {
		q := fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.id)", t)
		if _, err := e.driver.ExecuteQuery(ctx, q, nil); err != nil {
			logger.Warn("creating index failed", "label", t, "error", err)
		}
		st.Queries++
	}

	if e.clear {
		for _, t := range graph.NodeTypes {
			if _, err := e.driver.ExecuteQuery(ctx, fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", t), nil); err != nil {
				return st, fmt.Errorf("clearing %s nodes: %w", t, err)
			}
			st.Queries++
		}
	}

	byType := make(map[graph.NodeType][]map[string]any)
	var types []graph.NodeType
	for _, n := range g.Nodes() {
		if !identifier.MatchString(string(n.Type)) {
			logger.Warn("skipping node with unusable label", "id", n.ID, "type", n.Type)
			continue
		}
		if _, ok := byType[n.Type]; !ok {
			types = append(types, n.Type)
		}
		byType[n.Type] = append(byType[n.Type], map[string]any{"id": n.ID, "props": Properties(n)})
	}
	for _, t := range types {
		q := fmt.Sprintf("UNWIND $rows AS row MERGE (n:%s {id: row.id}) SET n += row.props", t)
		n, err := e.run(ctx, q, byType[t], &st)
		if err != nil {
			return st, fmt.Errorf("writing %s nodes: %w", t, err)
		}
		st.Nodes += n
	}

	type relKey struct {
		from, rel, to graph.NodeType
	}
	byRel := make(map[relKey][]map[string]any)
	var rels []relKey
	for _, edge := range g.Edges() {
		s, _ := g.Node(edge.Subject)
		o, _ := g.Node(edge.Object)
		rel := RelationshipType(edge.Predicate)
		if s == nil || o == nil || !identifier.MatchString(rel) {
			continue
		}
		k := relKey{s.Type, graph.NodeType(rel), o.Type}
		if _, ok := byRel[k]; !ok {
			rels = append(rels, k)
		}
		byRel[k] = append(byRel[k], map[string]any{"s": edge.Subject, "o": edge.Object})
	}
	for _, k := range rels {
		q := fmt.Sprintf("UNWIND $rows AS row MATCH (a:%s {id: row.s}) MATCH (b:%s {id: row.o}) MERGE (a)-[:%s]->(b)",
			k.from, k.to, k.rel)
		n, err := e.run(ctx, q, byRel[k], &st)
		if err != nil {
			return st, fmt.Errorf("writing %s relationships: %w", k.rel, err)
		}
		st.Relationships += n
	}

	logger.Info("exported graph", "nodes", st.Nodes, "relationships", st.Relationships)
	return st, nil
}

func (e *Exporter) run(ctx context.Context, query string, rows []map[string]any, st *Stats) (int, error) {
	for start := 0; start < len(rows); start += e.batchSize {
		end := min(start+e.batchSize, len(rows))
		if _, err := e.driver.ExecuteQuery(ctx, query, map[string]any{"rows": rows[start:end]}); err != nil {
			return start, err
		}
		st.Queries++
	}
	return len(rows), nil
}

// Properties converts a node's attributes to Cypher properties. Typed
// literals become numbers; repeated predicates become sorted lists.
func Properties(n *graph.Node) map[string]any {
	props := make(map[string]any, len(n.Attrs))
	multi := make(map[string][]string)
	for _, a := range n.Attrs {
		multi[a.Predicate] = append(multi[a.Predicate], a.Value)
		props[a.Predicate] = value(a)
	}
	for pred, vals := range multi {
		if len(vals) > 1 {
			sort.Strings(vals)
			props[pred] = vals
		}
	}
	return props
}

func value(a graph.Attr) any {
	switch a.Datatype {
	case graph.Decimal:
		if f, err := strconv.ParseFloat(a.Value, 64); err == nil {
			return f
		}
	case graph.Integer:
		if i, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			return i
		}
	}
	return a.Value
}
