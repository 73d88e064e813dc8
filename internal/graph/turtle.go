package graph

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/knakk/rdf"
)

// DefaultBase is the namespace of node ids, classes and predicates.
const DefaultBase = "http://www.owl-ontologies.com/base#"

const (
	rdfType        = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfLangString  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	xsdNS          = "http://www.w3.org/2001/XMLSchema#"
	basePrefixName = "base"
)

// ErrTurtleSyntax is returned for Turtle input that cannot be parsed.
var ErrTurtleSyntax = errors.New("turtle syntax error")

// WriteTurtle serializes g as Turtle with nodes, classes and predicates
// under base. Each node is written as its class, its attributes in order,
// then its outgoing edges.
func WriteTurtle(w io.Writer, g *Graph, base string) error {
	if base == "" {
		base = DefaultBase
	}
	enc := rdf.NewTripleEncoder(w, rdf.Turtle)
	if enc.Namespaces == nil {
		enc.Namespaces = make(map[string]string)
	}
	enc.Namespaces[base] = basePrefixName

	typePred, err := rdf.NewIRI(rdfType)
	if err != nil {
		return err
	}
	iri := func(name string) (rdf.IRI, error) {
		v, err := rdf.NewIRI(base + url.PathEscape(name))
		if err != nil {
			return rdf.IRI{}, fmt.Errorf("node term %q: %w", name, err)
		}
		return v, nil
	}

	out := make(map[string][]Edge, len(g.nodes))
	for _, e := range g.edges {
		out[e.Subject] = append(out[e.Subject], e)
	}

	for _, n := range g.nodes {
		subj, err := iri(n.ID)
		if err != nil {
			return err
		}
		class, err := iri(string(n.Type))
		if err != nil {
			return err
		}
		triples := []rdf.Triple{{Subj: subj, Pred: typePred, Obj: class}}

		for _, a := range n.Attrs {
			pred, err := iri(a.Predicate)
			if err != nil {
				return err
			}
			obj, err := literal(a)
			if err != nil {
				return err
			}
			triples = append(triples, rdf.Triple{Subj: subj, Pred: pred, Obj: obj})
		}
		for _, e := range out[n.ID] {
			pred, err := iri(e.Predicate)
			if err != nil {
				return err
			}
			obj, err := iri(e.Object)
			if err != nil {
				return err
			}
			triples = append(triples, rdf.Triple{Subj: subj, Pred: pred, Obj: obj})
		}

		if err := enc.EncodeAll(triples); err != nil {
			return fmt.Errorf("encoding node %s: %w", n.ID, err)
		}
	}
	return enc.Close()
}

func literal(a Attr) (rdf.Literal, error) {
	dt := "string"
	if a.Datatype != String {
		dt = string(a.Datatype)
	}
	iri, err := rdf.NewIRI(xsdNS + dt)
	if err != nil {
		return rdf.Literal{}, err
	}
	return rdf.NewTypedLiteral(a.Value, iri), nil
}

// ReadTurtle parses a Turtle graph. Subjects outside the base namespace,
// subjects without a class and objects outside base are ignored. The base
// namespace is the one the class IRIs live in, DefaultBase when there are
// none.
func ReadTurtle(r io.Reader) (*Graph, []OrphanedEdge, error) {
	dec := rdf.NewTripleDecoder(r, rdf.Turtle)
	var triples []rdf.Triple
	for {
		t, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrTurtleSyntax, err)
		}
		triples = append(triples, t)
	}

	base := DefaultBase
	for _, t := range triples {
		if t.Pred.String() != rdfType {
			continue
		}
		if class, ok := t.Obj.(rdf.IRI); ok {
			s := class.String()
			if i := strings.LastIndexAny(s, "#/"); i >= 0 {
				base = s[:i+1]
			}
			break
		}
	}
	local := func(iri string) (string, bool) {
		if !strings.HasPrefix(iri, base) {
			return "", false
		}
		name, err := url.PathUnescape(iri[len(base):])
		return name, err == nil && name != ""
	}

	nodes := make(map[string]*Node)
	var order []*Node
	var edges []Edge
	for _, t := range triples {
		subj, ok := t.Subj.(rdf.IRI)
		if !ok {
			continue
		}
		id, ok := local(subj.String())
		if !ok {
			continue
		}
		n := nodes[id]
		if n == nil {
			n = &Node{ID: id, Attrs: []Attr{}}
			nodes[id] = n
			order = append(order, n)
		}

		if t.Pred.String() == rdfType {
			if class, ok := t.Obj.(rdf.IRI); ok {
				if cls, ok := local(class.String()); ok {
					n.Type = NodeType(cls)
				}
			}
			continue
		}
		pred, ok := local(t.Pred.String())
		if !ok {
			continue
		}
		switch obj := t.Obj.(type) {
		case rdf.Literal:
			n.Attrs = append(n.Attrs, Attr{Predicate: pred, Value: obj.String(), Datatype: datatypeOf(obj)})
		case rdf.IRI:
			if target, ok := local(obj.String()); ok {
				edges = append(edges, Edge{Subject: id, Predicate: pred, Object: target})
			}
		}
	}

	typed := make([]*Node, 0, len(order))
	for _, n := range order {
		if n.Type != "" {
			typed = append(typed, n)
		}
	}
	g, orphaned := FromParts(typed, edges)
	return g, orphaned, nil
}

// datatypeOf maps xsd datatypes back to attribute datatypes; strings and
// language-tagged strings are plain.
func datatypeOf(l rdf.Literal) Datatype {
	dt := l.DataType.String()
	if dt == "" || dt == rdfLangString {
		return String
	}
	name, ok := strings.CutPrefix(dt, xsdNS)
	if !ok || name == "string" {
		return String
	}
	return Datatype(name)
}
