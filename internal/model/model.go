// Package model implements the three-head classification pipeline: one
// shared TF-IDF feature space feeding independent group, expert and label
// classifiers. A trained model is an immutable Snapshot; training stages all
// artifacts and publishes them only on full success, so readers never see a
// vectorizer paired with stale heads.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/features"
)

// ErrInsufficientData is returned when the corpus is below the training
// minimum. Prior trained state must stay untouched.
var ErrInsufficientData = errors.New("insufficient training data")

// MinTrainingRecords is the system-wide minimum, checked once before any
// head is fit.
const MinTrainingRecords = 10

// TrainConfig tunes one training pass.
type TrainConfig struct {
	MinRecords     int
	VocabularySize int
	Estimators     int
	Threshold      float64
}

// Snapshot is a fully trained model: the fitted vectorizer plus the three
// heads, frozen together. Never mutated after Train returns it.
type Snapshot struct {
	Vectorizer *features.Vectorizer `msgpack:"vectorizer"`
	Group      *Head                `msgpack:"group"`
	Expert     *Head                `msgpack:"expert"`
	Label      *Head                `msgpack:"label"`
	Threshold  float64              `msgpack:"threshold"`

	TrainedAt   time.Time `msgpack:"trained_at"`
	RecordCount int       `msgpack:"record_count"`
}

// HeadScores is the raw three-head output for one input text.
type HeadScores struct {
	Group      string
	Expert     string
	Label      string
	GroupConf  float64
	ExpertConf float64
	LabelConf  float64
}

// Train fits the vectorizer and all three heads on the corpus and returns a
// new Snapshot. All-or-nothing: any failure returns an error and nothing is
// published.
func Train(records []domain.TicketRecord, cfg TrainConfig) (*Snapshot, error) {
	minRecords := cfg.MinRecords
	if minRecords <= 0 {
		minRecords = MinTrainingRecords
	}
	if len(records) < minRecords {
		return nil, fmt.Errorf("%w: %d records, need %d", ErrInsufficientData, len(records), minRecords)
	}

	texts := make([]string, len(records))
	groups := make([]string, len(records))
	experts := make([]string, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.FullText
		groups[i] = r.Group
		experts[i] = r.Expert
		labels[i] = r.Label
	}

	vec := features.NewVectorizer(cfg.VocabularySize)
	vec.Fit(texts)
	x, err := vec.Transform(texts)
	if err != nil {
		return nil, fmt.Errorf("transform corpus: %w", err)
	}

	groupHead, err := FitHead(x, groups, cfg.Estimators)
	if err != nil {
		return nil, fmt.Errorf("fit group head: %w", err)
	}
	expertHead, err := FitHead(x, experts, cfg.Estimators)
	if err != nil {
		return nil, fmt.Errorf("fit expert head: %w", err)
	}
	labelHead, err := FitHead(x, labels, cfg.Estimators)
	if err != nil {
		return nil, fmt.Errorf("fit label head: %w", err)
	}

	return &Snapshot{
		Vectorizer:  vec,
		Group:       groupHead,
		Expert:      expertHead,
		Label:       labelHead,
		Threshold:   cfg.Threshold,
		TrainedAt:   time.Now(),
		RecordCount: len(records),
	}, nil
}

// Predict runs the shared vectorizer and all three heads on one text.
func (s *Snapshot) Predict(fullText string) (HeadScores, error) {
	var out HeadScores

	vec, err := s.Vectorizer.TransformOne(fullText)
	if err != nil {
		return out, err
	}
	if out.Group, out.GroupConf, err = s.Group.Predict(vec); err != nil {
		return out, fmt.Errorf("group head: %w", err)
	}
	if out.Expert, out.ExpertConf, err = s.Expert.Predict(vec); err != nil {
		return out, fmt.Errorf("expert head: %w", err)
	}
	if out.Label, out.LabelConf, err = s.Label.Predict(vec); err != nil {
		return out, fmt.Errorf("label head: %w", err)
	}
	return out, nil
}
