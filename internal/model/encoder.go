package model

import (
	"fmt"
	"sort"
)

// LabelEncoder maps raw string categories to dense integer indices. The
// mapping is bijective within one Fit and rebuilt from scratch on every Fit;
// categories unseen at the latest Fit are unrepresentable until retrained.
type LabelEncoder struct {
	Classes []string `msgpack:"classes"`

	index map[string]int
}

// Fit learns the class set from the given labels. Classes are sorted so the
// encoding is stable across runs.
func (e *LabelEncoder) Fit(labels []string) {
	seen := make(map[string]bool, len(labels))
	e.Classes = e.Classes[:0]
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			e.Classes = append(e.Classes, l)
		}
	}
	sort.Strings(e.Classes)
	e.index = nil
}

// Transform returns the index of a known class.
func (e *LabelEncoder) Transform(label string) (int, error) {
	if e.index == nil {
		e.index = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.index[c] = i
		}
	}
	i, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("unknown class %q", label)
	}
	return i, nil
}

// Inverse returns the class for an index.
func (e *LabelEncoder) Inverse(i int) (string, error) {
	if i < 0 || i >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range [0,%d)", i, len(e.Classes))
	}
	return e.Classes[i], nil
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int { return len(e.Classes) }
