// Package features turns ticket text into fixed-length numeric vectors. It
// implements a TF-IDF vectorizer with a bounded vocabulary: terms are ranked
// by corpus frequency, the top maxFeatures survive, and document vectors are
// L2-normalized.
package features

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// ErrNotFitted is returned when Transform is called before Fit.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// DefaultMaxFeatures bounds the vocabulary size.
const DefaultMaxFeatures = 1500

// minTokenLen drops one-letter fragments during tokenization.
const minTokenLen = 2

// defaultStopWords are short Russian function words that carry no signal for
// routing tickets.
var defaultStopWords = []string{"и", "в", "на", "с", "по", "для", "за", "к"}

// Vectorizer maps texts to TF-IDF vectors over a vocabulary frozen at the
// last Fit call.
type Vectorizer struct {
	MaxFeatures int
	StopWords   []string

	// Fitted state. Vocab maps term -> column index; IDF is indexed by
	// column.
	Vocab  map[string]int `msgpack:"vocab"`
	IDF    []float64      `msgpack:"idf"`
	Fitted bool           `msgpack:"fitted"`
}

// NewVectorizer creates an unfitted vectorizer with the default vocabulary
// bound and stop-word list.
func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Vectorizer{
		MaxFeatures: maxFeatures,
		StopWords:   defaultStopWords,
	}
}

// Fit learns the vocabulary and IDF weights from the corpus. Any previously
// fitted state is replaced.
func (v *Vectorizer) Fit(texts []string) {
	stop := make(map[string]bool, len(v.StopWords))
	for _, w := range v.StopWords {
		stop[w] = true
	}

	// Count total term frequency and document frequency in one pass.
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(text) {
			if stop[tok] {
				continue
			}
			termFreq[tok]++
			if !seen[tok] {
				docFreq[tok]++
				seen[tok] = true
			}
		}
	}

	// Keep the most frequent terms; ties break alphabetically so Fit is
	// deterministic.
	terms := make([]string, 0, len(termFreq))
	for t := range termFreq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termFreq[terms[i]] != termFreq[terms[j]] {
			return termFreq[terms[i]] > termFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > v.MaxFeatures {
		terms = terms[:v.MaxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(texts))
	v.Vocab = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, t := range terms {
		v.Vocab[t] = i
		// Smoothed IDF: every term behaves as if seen in one extra document.
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}
	v.Fitted = true
}

// Transform converts texts into TF-IDF vectors using the vocabulary frozen
// at the last Fit. Unknown terms are ignored.
func (v *Vectorizer) Transform(texts []string) ([][]float64, error) {
	if !v.Fitted {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = v.transformOne(text)
	}
	return out, nil
}

// TransformOne converts a single text into a TF-IDF vector.
func (v *Vectorizer) TransformOne(text string) ([]float64, error) {
	if !v.Fitted {
		return nil, ErrNotFitted
	}
	return v.transformOne(text), nil
}

func (v *Vectorizer) transformOne(text string) []float64 {
	vec := make([]float64, len(v.IDF))
	for _, tok := range Tokenize(text) {
		if col, ok := v.Vocab[tok]; ok {
			vec[col]++
		}
	}
	var norm float64
	for col := range vec {
		vec[col] *= v.IDF[col]
		norm += vec[col] * vec[col]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for col := range vec {
			vec[col] /= norm
		}
	}
	return vec
}

// Size returns the fitted vocabulary size.
func (v *Vectorizer) Size() int {
	return len(v.IDF)
}

// Tokenize lower-cases the text and splits it into letter/digit runs of at
// least two runes.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/4)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			if tok := b.String(); len([]rune(tok)) >= minTokenLen {
				tokens = append(tokens, tok)
			}
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}
