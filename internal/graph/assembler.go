package graph

import (
	"strconv"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/normalize"
	"github.com/matsen/paperkg/internal/orcid"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/person"
	"github.com/matsen/paperkg/internal/similarity"
)

// Stats counts what the assembler added and dropped.
type Stats struct {
	Papers           int `json:"papers"`
	DuplicatePapers  int `json:"duplicate_papers"`
	References       int `json:"references"`
	Persons          int `json:"persons"`
	EnrichedPersons  int `json:"enriched_persons"` // persons with an ORCID iD
	Organizations    int `json:"organizations"`
	Projects         int `json:"projects"`
	Topics           int `json:"topics"`
	SimilarityEdges  int `json:"similarity_edges"`
	UnresolvedPairs  int `json:"unresolved_pairs"`
	TopicMemberships int `json:"topic_memberships"`
}

type authorKey struct {
	paper string
	name  string
}

type membershipKey struct {
	topic string
	paper string
}

// Assembler builds a Graph one paper at a time and then adds the topic
// similarity data. Every node it creates for a paper, person, organization,
// project or topic goes through an identity map, so one logical entity is
// one node within a run.
type Assembler struct {
	g     *Graph
	index *paper.Index

	paperNodes   map[int]string
	persons      map[string]string
	orgs         map[string]string
	projects     map[string]string
	topics       map[string]string
	memberships  map[membershipKey]*Node
	enriched     map[string]bool // person node id -> has an ORCID record attached
	authors      map[authorKey]*person.Record
	authorByName map[string]*person.Record

	stats Stats
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithIDGenerator sets how node identifiers are minted.
func WithIDGenerator(ids IDGenerator) Option {
	return func(a *Assembler) {
		a.g = New(ids)
	}
}

// WithAuthors supplies enriched author records, joined to authors by
// paper and name.
func WithAuthors(records []person.Record) Option {
	return func(a *Assembler) {
		for i := range records {
			r := &records[i]
			name := normalize.Key(r.FullName)
			if name == "" {
				continue
			}
			for _, p := range []string{r.PaperFilename, r.PaperCited} {
				if p == "" {
					continue
				}
				k := authorKey{paper: normalize.Key(p), name: name}
				if _, ok := a.authors[k]; !ok {
					a.authors[k] = r
				}
			}
			if prev, ok := a.authorByName[name]; !ok || (prev.ORCID == nil && r.ORCID != nil) {
				a.authorByName[name] = r
			}
		}
	}
}

// NewAssembler returns an assembler over the run's papers. The papers are
// indexed up front so similarity records can be joined by key.
func NewAssembler(papers []paper.Paper, opts ...Option) *Assembler {
	a := &Assembler{
		g:            New(nil),
		index:        paper.NewIndex(papers),
		paperNodes:   make(map[int]string),
		persons:      make(map[string]string),
		orgs:         make(map[string]string),
		projects:     make(map[string]string),
		topics:       make(map[string]string),
		memberships:  make(map[membershipKey]*Node),
		enriched:     make(map[string]bool),
		authors:      make(map[authorKey]*person.Record),
		authorByName: make(map[string]*person.Record),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Graph returns the graph built so far.
func (a *Assembler) Graph() *Graph { return a.g }

// Stats returns the running counters.
func (a *Assembler) Stats() Stats { return a.stats }

// AddPapers adds every indexed paper in order.
func (a *Assembler) AddPapers(papers []paper.Paper) {
	for i := range papers {
		a.AddPaper(&papers[i])
	}
}

// AddPaper adds p with its authors, references and acknowledged entities
// and returns the paper node id. A paper already in the graph under the
// same key returns the existing node unchanged.
func (a *Assembler) AddPaper(p *paper.Paper) string {
	pos, indexed := a.index.Lookup(p.Key())
	if indexed {
		if id, ok := a.paperNodes[pos]; ok {
			a.stats.DuplicatePapers++
			return id
		}
	}

	n := a.g.AddNode(TypePaper)
	if p.Title != "" {
		n.Attrs = append(n.Attrs, Attr{Predicate: PredHasTitle, Value: p.Title})
	}
	if p.PublicationDate != "" {
		n.Attrs = append(n.Attrs, Attr{Predicate: PredHasDate, Value: p.PublicationDate})
	}
	if p.Filename != "" {
		n.Attrs = append(n.Attrs, Attr{Predicate: PredHasFilename, Value: p.Filename})
	}
	if indexed {
		a.paperNodes[pos] = n.ID
	}
	a.stats.Papers++

	for _, author := range p.Authors {
		if pid := a.personNode(p, author.Name); pid != "" {
			a.link(n.ID, PredHasAuthor, pid)
		}
	}

	for _, ref := range p.References {
		r := a.g.AddNode(TypePaper)
		if ref.Title != "" {
			r.Attrs = append(r.Attrs, Attr{Predicate: PredHasTitle, Value: ref.Title})
		}
		if ref.Identifier != nil && *ref.Identifier != "" {
			r.Attrs = append(r.Attrs, Attr{Predicate: PredHasIdentifier, Value: *ref.Identifier})
		}
		a.link(n.ID, PredReferences, r.ID)
		a.stats.References++
	}

	for _, e := range acknowledged(p.EnrichedOrganizations, p.Organizations, authority.KindOrganization) {
		a.link(n.ID, PredAcknowledges, a.entityNode(e))
	}
	for _, e := range acknowledged(p.EnrichedProjects, p.Projects, authority.KindProject) {
		a.link(n.ID, PredAcknowledges, a.entityNode(e))
	}
	return n.ID
}

// acknowledged prefers the enriched templates and falls back to bare names
// when a paper was never enriched.
func acknowledged(enriched []authority.Entity, names []string, kind authority.Kind) []authority.Entity {
	if len(enriched) > 0 {
		out := make([]authority.Entity, len(enriched))
		for i, e := range enriched {
			if e.Kind == authority.KindUnknown {
				e.Kind = kind
			}
			out[i] = e
		}
		return out
	}
	out := make([]authority.Entity, 0, len(names))
	for _, name := range names {
		out = append(out, authority.Entity{Kind: kind, Name: name})
	}
	return out
}

func (a *Assembler) personNode(p *paper.Paper, name string) string {
	key := normalize.Key(name)
	if key == "" {
		return ""
	}
	id, ok := a.persons[key]
	if !ok {
		n := a.g.AddNode(TypePerson, Attr{Predicate: PredHasName, Value: normalize.Clean(name)})
		id = n.ID
		a.persons[key] = id
		a.stats.Persons++
	}

	rec := a.authors[authorKey{paper: normalize.Key(p.Key()), name: key}]
	if rec == nil && p.Title != "" {
		rec = a.authors[authorKey{paper: normalize.Key(p.Title), name: key}]
	}
	if rec == nil {
		rec = a.authorByName[key]
	}
	if rec != nil {
		a.enrichPerson(id, rec)
	}
	return id
}

// enrichPerson attaches a record to a person node once. A later record with
// an ORCID id replaces an earlier one without.
func (a *Assembler) enrichPerson(id string, rec *person.Record) {
	hasORCID, done := a.enriched[id]
	if done && (hasORCID || rec.ORCID == nil) {
		return
	}
	n := a.g.byID[id]
	attrs := []Attr{n.Attrs[0]}
	if rec.GivenName != "" {
		attrs = append(attrs, Attr{Predicate: PredHasGivenName, Value: rec.GivenName})
	}
	if rec.FamilyName != "" {
		attrs = append(attrs, Attr{Predicate: PredHasFamilyName, Value: rec.FamilyName})
	}
	if rec.ORCID != nil {
		attrs = append(attrs, Attr{Predicate: PredHasORCID, Value: *rec.ORCID})
	}
	seen := make(map[string]bool)
	for _, aff := range append(institutions(rec.Employment), institutions(rec.Education)...) {
		k := normalize.Key(aff)
		if seen[k] {
			continue
		}
		seen[k] = true
		attrs = append(attrs, Attr{Predicate: PredHasAffiliation, Value: aff})
	}
	if rec.WorkCount != nil {
		attrs = append(attrs, Attr{Predicate: PredHasWorkCount, Value: strconv.Itoa(*rec.WorkCount), Datatype: Integer})
	}
	n.Attrs = attrs
	if rec.ORCID != nil {
		a.stats.EnrichedPersons++
	}
	a.enriched[id] = rec.ORCID != nil
}

func institutions(affs []orcid.Affiliation) []string {
	var out []string
	for _, aff := range affs {
		if aff.Institution != nil && *aff.Institution != "" {
			out = append(out, *aff.Institution)
		}
	}
	return out
}

func (a *Assembler) entityNode(e authority.Entity) string {
	key := normalize.Key(e.Name)
	ids, typ := a.orgs, TypeOrganization
	if e.Kind == authority.KindProject {
		ids, typ = a.projects, TypeProject
	}
	if id, ok := ids[key]; ok {
		return id
	}

	n := a.g.AddNode(typ)
	for _, attr := range e.Attrs() {
		dt := String
		if attr.Predicate == "has_wikidata_uri" || attr.Predicate == "has_website" {
			dt = AnyURI
		}
		n.Attrs = append(n.Attrs, Attr{Predicate: attr.Predicate, Value: attr.Value, Datatype: dt})
	}
	ids[key] = n.ID
	if typ == TypeProject {
		a.stats.Projects++
	} else {
		a.stats.Organizations++
	}
	return n.ID
}

// AddTopicSimilarities adds one topic's similarity records: a Topic node
// named topic, a similar_to edge per record, and one TopicBelonging node
// per (topic, paper) carrying the paper's highest similarity score in the
// topic. Records naming a paper that is not in the graph are dropped.
func (a *Assembler) AddTopicSimilarities(topic string, pairs []similarity.Pair) {
	topicID, ok := a.topics[topic]
	if !ok {
		topicID = a.g.AddNode(TypeTopic, Attr{Predicate: PredHasNameTopic, Value: topic}).ID
		a.topics[topic] = topicID
		a.stats.Topics++
	}

	for _, pair := range pairs {
		id1, ok1 := a.paperID(pair.Paper1)
		id2, ok2 := a.paperID(pair.Paper2)
		if !ok1 || !ok2 {
			logger.Debug("dropping similarity record with unknown paper",
				"topic", topic, "paper1", pair.Paper1, "paper2", pair.Paper2)
			a.stats.UnresolvedPairs++
			continue
		}
		if added, _ := a.g.AddEdge(id1, PredSimilarTo, id2); added {
			a.stats.SimilarityEdges++
		}
		a.membership(topic, topicID, id1, pair.Similarity)
		a.membership(topic, topicID, id2, pair.Similarity)
	}
}

func (a *Assembler) paperID(key string) (string, bool) {
	pos, ok := a.index.Lookup(key)
	if !ok {
		return "", false
	}
	id, ok := a.paperNodes[pos]
	return id, ok
}

func (a *Assembler) membership(topic, topicID, paperID string, score float64) {
	k := membershipKey{topic: topic, paper: paperID}
	if n, ok := a.memberships[k]; ok {
		if cur, _ := n.Attr(PredHasPercentage); score > parseFloat(cur) {
			n.SetAttr(DecimalAttr(PredHasPercentage, score))
		}
		return
	}
	n := a.g.AddNode(TypeTopicBelonging, DecimalAttr(PredHasPercentage, score))
	a.memberships[k] = n
	a.link(n.ID, PredHasTopic, topicID)
	a.link(n.ID, PredHasPaper, paperID)
	a.stats.TopicMemberships++
}

func (a *Assembler) link(subject, predicate, object string) {
	if _, err := a.g.AddEdge(subject, predicate, object); err != nil {
		logger.Warn("skipping edge", "subject", subject, "predicate", predicate, "object", object, "error", err)
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
