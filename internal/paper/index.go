package paper

import "github.com/matsen/paperkg/internal/normalize"

// Index is the per-run identity map from paper keys to positions in the
// paper list. It resolves by exact filename first, then by normalized
// filename or title, so artifacts written by different stages join even
// when their key formatting drifts.
type Index struct {
	papers  []Paper
	byExact map[string]int
	byKey   map[string]int
}

// NewIndex builds an index over papers. On key collisions the first paper wins.
func NewIndex(papers []Paper) *Index {
	idx := &Index{
		papers:  papers,
		byExact: make(map[string]int, len(papers)),
		byKey:   make(map[string]int, 2*len(papers)),
	}
	for i := range papers {
		p := &papers[i]
		if _, ok := idx.byExact[p.Key()]; !ok {
			idx.byExact[p.Key()] = i
		}
		for _, s := range []string{p.Filename, p.Title} {
			if s == "" {
				continue
			}
			k := normalize.Key(s)
			if _, ok := idx.byKey[k]; !ok {
				idx.byKey[k] = i
			}
		}
	}
	return idx
}

// Lookup returns the position of the paper identified by key.
func (idx *Index) Lookup(key string) (int, bool) {
	if key == "" {
		return -1, false
	}
	if i, ok := idx.byExact[key]; ok {
		return i, true
	}
	if i, ok := idx.byKey[normalize.Key(key)]; ok {
		return i, true
	}
	return -1, false
}

// Get returns the paper identified by key.
func (idx *Index) Get(key string) (*Paper, bool) {
	i, ok := idx.Lookup(key)
	if !ok {
		return nil, false
	}
	return &idx.papers[i], true
}

// Len returns the number of indexed papers.
func (idx *Index) Len() int {
	return len(idx.papers)
}
