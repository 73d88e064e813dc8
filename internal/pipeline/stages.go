package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/ner"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/pdf"
	"github.com/matsen/paperkg/internal/person"
)

// NERStats summarizes a candidate extraction run.
type NERStats struct {
	Papers        int    `json:"papers"`
	Organizations int    `json:"organizations"`
	Projects      int    `json:"projects"`
	FromPDF       int    `json:"from_pdf"`
	Output        string `json:"output"`
}

// RunNER extracts organization and project candidates from every paper's
// acknowledgements and writes the NER artifact.
func (r *Runner) RunNER(ctx context.Context) (NERStats, error) {
	input := r.cfg.Output(r.cfg.Files.Metadata)
	papers, err := loadPapers("ner", input)
	if err != nil {
		return NERStats{}, err
	}
	if err := r.outputDir(); err != nil {
		return NERStats{}, err
	}
	resolver, err := r.Resolver(ctx)
	if err != nil {
		return NERStats{}, err
	}

	extractor := ner.NewExtractor(r.nerTagger(), resolver, ner.WithMinLength(r.cfg.NER.MinLength))
	var locator *pdf.Locator
	if r.cfg.PDFDir != "" {
		locator = pdf.NewLocator(r.cfg.PDFDir)
	}

	stats := NERStats{Papers: len(papers), Output: r.cfg.Output(r.cfg.Files.NER)}
	for i := range papers {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		p := &papers[i]
		text := p.Acknowledgements
		if text == "" && locator != nil {
			if recovered := recoverAcknowledgements(locator, p); recovered != "" {
				text = recovered
				p.Acknowledgements = recovered
				stats.FromPDF++
			}
		}

		res := extractor.Extract(ctx, text)
		p.Organizations = res.Organizations
		p.Projects = res.Projects
		stats.Organizations += len(res.Organizations)
		stats.Projects += len(res.Projects)
		logger.Debug("extracted candidates", "paper", p.Key(),
			"organizations", len(res.Organizations), "projects", len(res.Projects))
	}

	if err := paper.Write(stats.Output, papers); err != nil {
		return stats, err
	}
	return stats, nil
}

func recoverAcknowledgements(locator *pdf.Locator, p *paper.Paper) string {
	if p.Filename == "" {
		return ""
	}
	path, err := locator.ResolvePath(p.Filename)
	if err != nil {
		logger.Debug("no local PDF for paper", "paper", p.Key(), "err", err)
		return ""
	}
	text, err := pdf.ExtractAcknowledgements(path)
	if err != nil {
		logger.Warn("reading acknowledgements from PDF failed", "path", path, "err", err)
		return ""
	}
	return text
}

// EnrichStats summarizes an authority enrichment run.
type EnrichStats struct {
	Papers        int             `json:"papers"`
	Organizations int             `json:"organizations"`
	Projects      int             `json:"projects"`
	Matched       int             `json:"matched"`
	Resolver      authority.Stats `json:"resolver"`
	Output        string          `json:"output"`
	Elapsed       string          `json:"elapsed"`
}

// RunEnrich resolves every candidate of the NER artifact against the
// authority and writes the enriched artifact. With more than one worker,
// papers are enriched concurrently; the shared resolver still looks each
// normalized name up at most once.
func (r *Runner) RunEnrich(ctx context.Context) (EnrichStats, error) {
	input := r.cfg.Output(r.cfg.Files.NER)
	papers, err := loadPapers("enrich", input)
	if err != nil {
		return EnrichStats{}, err
	}
	if err := r.outputDir(); err != nil {
		return EnrichStats{}, err
	}
	resolver, err := r.Resolver(ctx)
	if err != nil {
		return EnrichStats{}, err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Workers, 1))
	for i := range papers {
		p := &papers[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enrichPaper(gctx, resolver, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EnrichStats{}, err
	}

	stats := EnrichStats{
		Papers:   len(papers),
		Resolver: resolver.Stats(),
		Output:   r.cfg.Output(r.cfg.Files.Enriched),
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
	}
	for i := range papers {
		stats.Organizations += len(papers[i].EnrichedOrganizations)
		stats.Projects += len(papers[i].EnrichedProjects)
		stats.Matched += countMatched(papers[i].EnrichedOrganizations) + countMatched(papers[i].EnrichedProjects)
	}

	if err := paper.Write(stats.Output, papers); err != nil {
		return stats, err
	}
	return stats, nil
}

func countMatched(entities []authority.Entity) int {
	n := 0
	for i := range entities {
		if entities[i].Matched() {
			n++
		}
	}
	return n
}

func enrichPaper(ctx context.Context, resolver *authority.Resolver, p *paper.Paper) {
	p.EnrichedOrganizations = make([]authority.Entity, 0, len(p.Organizations))
	for _, name := range p.Organizations {
		p.EnrichedOrganizations = append(p.EnrichedOrganizations, *resolver.Resolve(ctx, name, authority.KindOrganization))
	}
	p.EnrichedProjects = make([]authority.Entity, 0, len(p.Projects))
	for _, name := range p.Projects {
		p.EnrichedProjects = append(p.EnrichedProjects, *resolver.Resolve(ctx, name, authority.KindProject))
	}
}

// AuthorStats summarizes a person disambiguation run.
type AuthorStats struct {
	Papers  int    `json:"papers"`
	Authors int    `json:"authors"`
	Matched int    `json:"matched"`
	Output  string `json:"output"`
}

// RunAuthors disambiguates every (author, paper) pair of the metadata
// against ORCID and writes the enriched-authors artifact. Authors are
// processed one at a time; a failed lookup yields a record without an iD.
func (r *Runner) RunAuthors(ctx context.Context) (AuthorStats, error) {
	input := r.cfg.Output(r.cfg.Files.Metadata)
	papers, err := loadPapers("authors", input)
	if err != nil {
		return AuthorStats{}, err
	}
	strategy, err := person.ParseStrategy(r.cfg.ORCID.Strategy)
	if err != nil {
		return AuthorStats{}, err
	}
	if err := r.outputDir(); err != nil {
		return AuthorStats{}, err
	}

	d := person.New(r.orcidDirectory(), strategy, person.Thresholds{
		Affiliation:      r.cfg.ORCID.AffiliationScore,
		Keyword:          r.cfg.ORCID.KeywordScore,
		Title:            r.cfg.ORCID.TitleScore,
		MinKeywordLength: r.cfg.ORCID.MinKeywordLength,
	})

	stats := AuthorStats{Papers: len(papers), Output: r.cfg.Output(r.cfg.Files.Authors)}
	records := []person.Record{}
	for i := range papers {
		p := &papers[i]
		for _, a := range p.Authors {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if a.Name == "" {
				continue
			}
			rec := d.Disambiguate(ctx, a.Name, p.Title, a.Affiliation)
			rec.PaperFilename = p.Filename
			if rec.ORCID != nil {
				stats.Matched++
			}
			records = append(records, rec)
		}
	}
	stats.Authors = len(records)

	if err := paper.WriteJSON(stats.Output, records); err != nil {
		return stats, fmt.Errorf("writing authors: %w", err)
	}
	return stats, nil
}
