// Package person resolves paper authors to ORCID records.
package person

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/paperkg/internal/fuzzy"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/orcid"
)

// Strategy selects the order in which candidate records are tested.
type Strategy string

const (
	// AffiliationFirst tests every candidate's affiliations before any
	// candidate's works. Without a known affiliation only works are tested.
	AffiliationFirst Strategy = "affiliation-first"

	// KeywordFirst tests works before affiliations.
	KeywordFirst Strategy = "keyword-first"

	// TitleMatch accepts the first candidate with a work whose whole title
	// is close to the paper title.
	TitleMatch Strategy = "title"
)

// ParseStrategy validates a strategy name; empty means AffiliationFirst.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return AffiliationFirst, nil
	case AffiliationFirst, KeywordFirst, TitleMatch:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown disambiguation strategy %q", s)
}

// Directory is the researcher registry consulted for candidates.
type Directory interface {
	Search(ctx context.Context, given, family string) ([]string, error)
	Works(ctx context.Context, id string) (*orcid.Works, error)
	Educations(ctx context.Context, id string) ([]orcid.Affiliation, error)
	Employments(ctx context.Context, id string) ([]orcid.Affiliation, error)
	Person(ctx context.Context, id string) (*orcid.PersonInfo, error)
}

// Thresholds are the fuzzy-match cut-offs, 0-100.
type Thresholds struct {
	Affiliation      int
	Keyword          int
	Title            int
	MinKeywordLength int
}

// DefaultThresholds are tuned for precision over recall.
var DefaultThresholds = Thresholds{
	Affiliation:      85,
	Keyword:          85,
	Title:            70,
	MinKeywordLength: 4,
}

// Record is the enriched author entry written per (author, paper) pair.
// List fields are never null.
type Record struct {
	FullName       string                `json:"full_name"`
	FamilyName     string                `json:"family_name"`
	GivenName      string                `json:"given_name"`
	ORCID          *string               `json:"orcid_id"`
	PaperCited     string                `json:"paper_cited"`
	PaperFilename  string                `json:"paper_filename,omitempty"`
	Education      []orcid.Affiliation   `json:"education"`
	Employment     []orcid.Affiliation   `json:"employment"`
	ExternalIDs    []orcid.ExternalID    `json:"external_ids"`
	ResearcherURLs []orcid.ResearcherURL `json:"researcher_urls"`
	OtherNames     []string              `json:"other_names"`
	WorkCount      *int                  `json:"work_count"`
}

func emptyRecord(fullName, title string) Record {
	given, family := SplitName(fullName)
	return Record{
		FullName:       strings.Join(strings.Fields(fullName), " "),
		GivenName:      given,
		FamilyName:     family,
		PaperCited:     title,
		Education:      []orcid.Affiliation{},
		Employment:     []orcid.Affiliation{},
		ExternalIDs:    []orcid.ExternalID{},
		ResearcherURLs: []orcid.ResearcherURL{},
		OtherNames:     []string{},
	}
}

// Disambiguator picks at most one registry record per author.
type Disambiguator struct {
	dir        Directory
	strategy   Strategy
	thresholds Thresholds
}

// New creates a Disambiguator.
func New(dir Directory, strategy Strategy, thresholds Thresholds) *Disambiguator {
	if strategy == "" {
		strategy = AffiliationFirst
	}
	return &Disambiguator{dir: dir, strategy: strategy, thresholds: thresholds}
}

// candidate memoizes registry data fetched while testing one record.
type candidate struct {
	id          string
	works       *orcid.Works
	educations  []orcid.Affiliation
	employments []orcid.Affiliation
	worksErr    error
	fetched     struct{ works, affiliations bool }
}

func (d *Disambiguator) loadWorks(ctx context.Context, c *candidate) *orcid.Works {
	if !c.fetched.works {
		c.fetched.works = true
		c.works, c.worksErr = d.dir.Works(ctx, c.id)
		if c.worksErr != nil {
			logger.Warn("ORCID works fetch failed", "orcid", c.id, "err", c.worksErr)
		}
	}
	return c.works
}

func (d *Disambiguator) loadAffiliations(ctx context.Context, c *candidate) []orcid.Affiliation {
	if !c.fetched.affiliations {
		c.fetched.affiliations = true
		var err error
		if c.educations, err = d.dir.Educations(ctx, c.id); err != nil {
			logger.Warn("ORCID educations fetch failed", "orcid", c.id, "err", err)
		}
		if c.employments, err = d.dir.Employments(ctx, c.id); err != nil {
			logger.Warn("ORCID employments fetch failed", "orcid", c.id, "err", err)
		}
	}
	all := make([]orcid.Affiliation, 0, len(c.educations)+len(c.employments))
	all = append(all, c.educations...)
	return append(all, c.employments...)
}

func (d *Disambiguator) affiliationMatches(ctx context.Context, c *candidate, affiliation string) bool {
	for _, a := range d.loadAffiliations(ctx, c) {
		if a.Institution != nil && fuzzy.TokenSetRatio(*a.Institution, affiliation) >= d.thresholds.Affiliation {
			return true
		}
	}
	return false
}

func (d *Disambiguator) keywordsMatch(ctx context.Context, c *candidate, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	works := d.loadWorks(ctx, c)
	if works == nil {
		return false
	}
	required := max(1, (len(keywords)+1)/2)
	hits := 0
	for _, kw := range keywords {
		for _, title := range works.Titles {
			if fuzzy.PartialRatio(kw, title) >= d.thresholds.Keyword {
				hits++
				break
			}
		}
		if hits >= required {
			return true
		}
	}
	return false
}

func (d *Disambiguator) titleMatches(ctx context.Context, c *candidate, paperTitle string) bool {
	works := d.loadWorks(ctx, c)
	if works == nil || paperTitle == "" {
		return false
	}
	for _, title := range works.Titles {
		if fuzzy.TokenSetRatio(paperTitle, title) >= d.thresholds.Title {
			return true
		}
	}
	return false
}

// Disambiguate resolves fullName, an author of paperTitle with an optional
// recorded affiliation. Zero hits, no accepted candidate and registry
// failures all yield a record without an ORCID iD.
func (d *Disambiguator) Disambiguate(ctx context.Context, fullName, paperTitle, affiliation string) Record {
	rec := emptyRecord(fullName, paperTitle)
	if rec.GivenName == "" || rec.FamilyName == "" {
		logger.Debug("skipping ORCID search for incomplete name", "name", fullName)
		return rec
	}

	ids, err := d.dir.Search(ctx, rec.GivenName, rec.FamilyName)
	if err != nil {
		logger.Warn("ORCID search failed", "name", fullName, "err", err)
		return rec
	}
	if len(ids) == 0 {
		logger.Debug("no ORCID candidates", "name", fullName)
		return rec
	}

	cands := make([]*candidate, len(ids))
	for i, id := range ids {
		cands[i] = &candidate{id: id}
	}

	accepted := d.pick(ctx, cands, paperTitle, affiliation)
	if accepted == nil {
		return rec
	}
	d.attach(ctx, &rec, accepted)
	return rec
}

func (d *Disambiguator) pick(ctx context.Context, cands []*candidate, paperTitle, affiliation string) *candidate {
	affiliation = strings.TrimSpace(affiliation)
	keywords := Keywords(paperTitle, d.thresholds.MinKeywordLength)

	byAffiliation := func() *candidate {
		if affiliation == "" {
			return nil
		}
		for _, c := range cands {
			if d.affiliationMatches(ctx, c, affiliation) {
				return c
			}
		}
		return nil
	}
	byKeywords := func() *candidate {
		for _, c := range cands {
			if d.keywordsMatch(ctx, c, keywords) {
				return c
			}
		}
		return nil
	}

	var passes []func() *candidate
	switch d.strategy {
	case KeywordFirst:
		passes = append(passes, byKeywords, byAffiliation)
	case TitleMatch:
		passes = append(passes, func() *candidate {
			for _, c := range cands {
				if d.titleMatches(ctx, c, paperTitle) {
					return c
				}
			}
			return nil
		})
	default:
		passes = append(passes, byAffiliation, byKeywords)
	}
	for _, pass := range passes {
		if c := pass(); c != nil {
			return c
		}
	}
	return nil
}

func (d *Disambiguator) attach(ctx context.Context, rec *Record, c *candidate) {
	id := c.id
	rec.ORCID = &id

	d.loadAffiliations(ctx, c)
	if c.educations != nil {
		rec.Education = c.educations
	}
	if c.employments != nil {
		rec.Employment = c.employments
	}

	if works := d.loadWorks(ctx, c); works != nil {
		n := works.Count
		rec.WorkCount = &n
	}

	info, err := d.dir.Person(ctx, id)
	if err != nil {
		logger.Warn("ORCID person fetch failed", "orcid", id, "err", err)
		return
	}
	if info.ExternalIDs != nil {
		rec.ExternalIDs = info.ExternalIDs
	}
	if info.ResearcherURLs != nil {
		rec.ResearcherURLs = info.ResearcherURLs
	}
	if info.OtherNames != nil {
		rec.OtherNames = info.OtherNames
	}
}
