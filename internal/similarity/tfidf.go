package similarity

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/matsen/paperkg/internal/semantic"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// englishStopWords is the stop list applied before term weighting.
var englishStopWords = toSet(strings.Fields(`
a about above across after afterwards again against all almost alone along already also
although always am among amongst amoungst amount an and another any anyhow anyone anything
anyway anywhere are around as at back be became because become becomes becoming been before
beforehand behind being below beside besides between beyond bill both bottom but by call can
cannot cant co con could couldnt cry de describe detail do done down due during each eg eight
either eleven else elsewhere empty enough etc even ever every everyone everything everywhere
except few fifteen fifty fill find fire first five for former formerly forty found four from
front full further get give go had has hasnt have he hence her here hereafter hereby herein
hereupon hers herself him himself his how however hundred i ie if in inc indeed interest into
is it its itself keep last latter latterly least less ltd made many may me meanwhile might mill
mine more moreover most mostly move much must my myself name namely neither never nevertheless
next nine no nobody none noone nor not nothing now nowhere of off often on once one only onto or
other others otherwise our ours ourselves out over own part per perhaps please put rather re same
see seem seemed seeming seems serious several she should show side since sincere six sixty so
some somehow someone something sometime sometimes somewhere still such system take ten than that
the their them themselves then thence there thereafter thereby therefore therein thereupon these
they thick thin third this those though three through throughout thru thus to together too top
toward towards twelve twenty two un under until up upon us very via was we well were what
whatever when whence whenever where whereafter whereas whereby wherein whereupon wherever whether
which while whither who whoever whole whom whose why will with within without would yet you your
yours yourself yourselves`))

func toSet(words []string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// Tokenize lower-cases text and returns its terms of two or more word
// characters, stop words removed.
func Tokenize(text string) []string {
	var out []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if !englishStopWords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// TFIDF weights raw term counts by smoothed inverse document frequency,
// ln((1+n)/(1+df))+1, and L2-normalizes each document vector. The
// vocabulary is fitted on the texts of one call.
type TFIDF struct{}

// Name identifies the backend.
func (TFIDF) Name() string { return "tfidf" }

// Vectors returns one dense vector per text over the fitted vocabulary.
func (TFIDF) Vectors(texts []string) [][]float64 {
	vocab := make(map[string]int)
	counts := make([]map[int]float64, len(texts))
	df := []float64{}
	for i, text := range texts {
		counts[i] = make(map[int]float64)
		for _, tok := range Tokenize(text) {
			id, ok := vocab[tok]
			if !ok {
				id = len(vocab)
				vocab[tok] = id
				df = append(df, 0)
			}
			if counts[i][id] == 0 {
				df[id]++
			}
			counts[i][id]++
		}
	}

	n := float64(len(texts))
	vecs := make([][]float64, len(texts))
	for i := range texts {
		v := make([]float64, len(vocab))
		for id, c := range counts[i] {
			v[id] = c * (math.Log((1+n)/(1+df[id])) + 1)
		}
		semantic.Normalize(v)
		vecs[i] = v
	}
	return vecs
}

// Matrix returns the pairwise cosine similarity of texts.
func (t TFIDF) Matrix(_ context.Context, texts []string) ([][]float64, error) {
	return semantic.Matrix(t.Vectors(texts)), nil
}
