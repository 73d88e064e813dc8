// Package similarity groups papers by topic and scores every pair within a
// group.
package similarity

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/paper"
)

// Backend turns texts into a symmetric similarity matrix.
type Backend interface {
	Name() string
	Matrix(ctx context.Context, texts []string) ([][]float64, error)
}

// Pair is one undirected similarity edge. Paper1 precedes Paper2 in input order.
type Pair struct {
	Paper1     string  `json:"paper1"`
	Paper2     string  `json:"paper2"`
	Similarity float64 `json:"similarity"`
}

// Group is the papers sharing one main topic, in input order.
type Group struct {
	Topic  int
	Papers []*paper.Paper
}

// TopicResult is the scored pairs of one group.
type TopicResult struct {
	Topic int
	Pairs []Pair
}

// GroupByTopic partitions papers by main topic. Groups are ordered by the
// first appearance of their topic; papers without a topic are skipped.
func GroupByTopic(papers []paper.Paper) []Group {
	var groups []Group
	pos := make(map[int]int)
	for i := range papers {
		topic, err := papers[i].Topic()
		if err != nil {
			logger.Debug("paper has no topic", "paper", papers[i].Key())
			continue
		}
		g, ok := pos[topic]
		if !ok {
			g = len(groups)
			pos[topic] = g
			groups = append(groups, Group{Topic: topic})
		}
		groups[g].Papers = append(groups[g].Papers, &papers[i])
	}
	return groups
}

// Round3 rounds to three decimal places, clamped to [0, 1].
func Round3(x float64) float64 {
	x = math.Max(0, math.Min(1, x))
	return math.Round(x*1000) / 1000
}

// Pairs scores every unordered pair (i<j) of papers by abstract.
// Fewer than two papers yield no pairs.
func Pairs(ctx context.Context, papers []*paper.Paper, backend Backend) ([]Pair, error) {
	if len(papers) < 2 {
		return nil, nil
	}
	texts := make([]string, len(papers))
	for i, p := range papers {
		texts[i] = p.Abstract
	}
	m, err := backend.Matrix(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(m) != len(papers) {
		return nil, fmt.Errorf("%s returned a %d-row matrix for %d papers", backend.Name(), len(m), len(papers))
	}
	pairs := make([]Pair, 0, len(papers)*(len(papers)-1)/2)
	for i := 0; i < len(papers); i++ {
		for j := i + 1; j < len(papers); j++ {
			pairs = append(pairs, Pair{
				Paper1:     papers[i].Key(),
				Paper2:     papers[j].Key(),
				Similarity: Round3(m[i][j]),
			})
		}
	}
	return pairs, nil
}

// Cluster scores each topic group with at least two members.
func Cluster(ctx context.Context, papers []paper.Paper, backend Backend) ([]TopicResult, error) {
	var results []TopicResult
	for _, g := range GroupByTopic(papers) {
		if len(g.Papers) < 2 {
			logger.Info("skipping singleton topic", "topic", g.Topic)
			continue
		}
		pairs, err := Pairs(ctx, g.Papers, backend)
		if err != nil {
			return nil, fmt.Errorf("topic %d: %w", g.Topic, err)
		}
		results = append(results, TopicResult{Topic: g.Topic, Pairs: pairs})
	}
	return results, nil
}

// Corpus scores every pair of papers regardless of topic.
func Corpus(ctx context.Context, papers []paper.Paper, backend Backend) ([]Pair, error) {
	ptrs := make([]*paper.Paper, len(papers))
	for i := range papers {
		ptrs[i] = &papers[i]
	}
	pairs, err := Pairs(ctx, ptrs, backend)
	if pairs == nil {
		pairs = []Pair{}
	}
	return pairs, err
}

// TopicFileName is the per-topic output file name.
func TopicFileName(topic int) string {
	return "topic_" + strconv.Itoa(topic) + ".json"
}

// WriteTopicFiles replaces the topic files in dir with one file per result.
// Files left from earlier runs are removed first.
func WriteTopicFiles(dir string, results []TopicResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "topic_*.json"))
	if err != nil {
		return nil, err
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return nil, fmt.Errorf("removing stale %s: %w", f, err)
		}
	}

	written := make([]string, 0, len(results))
	for _, r := range results {
		path := filepath.Join(dir, TopicFileName(r.Topic))
		pairs := r.Pairs
		if pairs == nil {
			pairs = []Pair{}
		}
		if err := paper.WriteJSON(path, pairs); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

// TopicFile is a similarity file read back with its topic id.
type TopicFile struct {
	Topic string
	Pairs []Pair
}

// ReadTopicFiles loads every topic file in dir, ordered by file name.
func ReadTopicFiles(dir string) ([]TopicFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "topic_*.json"))
	if err != nil {
		return nil, err
	}
	var files []TopicFile
	for _, path := range paths {
		var pairs []Pair
		if err := paper.ReadJSON(path, &pairs); err != nil {
			return nil, err
		}
		base := filepath.Base(path)
		topic := base[len("topic_") : len(base)-len(".json")]
		files = append(files, TopicFile{Topic: topic, Pairs: pairs})
	}
	return files, nil
}
