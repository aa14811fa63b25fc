package model

import "fmt"

// Head is one classification target: a label encoder paired with a bagged
// classifier. The service runs three of them (group, expert, label) over the
// same feature matrix.
type Head struct {
	Encoder *LabelEncoder     `msgpack:"encoder"`
	Clf     *BaggedClassifier `msgpack:"clf"`
}

// FitHead trains a head on the feature matrix and its categorical labels.
func FitHead(x [][]float64, labels []string, estimators int) (*Head, error) {
	enc := &LabelEncoder{}
	enc.Fit(labels)

	y := make([]int, len(labels))
	for i, l := range labels {
		idx, err := enc.Transform(l)
		if err != nil {
			return nil, fmt.Errorf("encode label: %w", err)
		}
		y[i] = idx
	}

	clf := NewBaggedClassifier(estimators)
	if err := clf.Fit(x, y, enc.Len()); err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	return &Head{Encoder: enc, Clf: clf}, nil
}

// Predict returns the most probable class and its probability, the head's
// confidence.
func (h *Head) Predict(vec []float64) (string, float64, error) {
	probs, err := h.Clf.PredictProba(vec)
	if err != nil {
		return "", 0, err
	}
	best, bestP := 0, 0.0
	for c, p := range probs {
		if p > bestP {
			best, bestP = c, p
		}
	}
	label, err := h.Encoder.Inverse(best)
	if err != nil {
		return "", 0, err
	}
	return label, bestP, nil
}
