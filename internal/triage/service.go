// Package triage orchestrates the full prediction pipeline: spam gate,
// trained-model inference with confidence-based moderation, training
// lifecycle and artifact persistence. The trained model is published through
// an atomic pointer, so request handlers always read a complete snapshot
// while training runs in the background.
package triage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/ingest"
	"github.com/rakhimov-me/smax-ai/internal/logger"
	"github.com/rakhimov-me/smax-ai/internal/model"
	"github.com/rakhimov-me/smax-ai/internal/spamgate"
	"github.com/rakhimov-me/smax-ai/internal/store"
	"github.com/rakhimov-me/smax-ai/internal/telemetry"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 1].
var ErrInvalidThreshold = errors.New("confidence threshold must be between 0 and 1")

// ErrNotTrained is returned by Save when there is nothing to save.
var ErrNotTrained = errors.New("model is not trained")

// Moderation reasons shown to support staff, in Russian like the rest of the
// user-facing strings.
const (
	reasonVeryLowConfidence = "Низкая уверенность модели: возможная опечатка или бессмысленный запрос"
	reasonLowConfidenceFmt  = "Низкая уверенность модели (%.1f%%) - требуется проверка человеком"
	reasonWeakHeadsPrefix   = "Низкая уверенность в определении: "

	veryLowConfidence = 0.10
)

// Archiver persists served predictions, ingested batches and the
// ingested-file ledger. Optional: a nil Archiver disables write-through
// persistence.
type Archiver interface {
	SaveBatch(ctx context.Context, records []domain.TicketRecord) error
	MarkIngested(ctx context.Context, path string, info domain.SourceFileInfo) error
	SavePrediction(ctx context.Context, title string, p domain.Prediction) error
	Clear(ctx context.Context) error
}

// Config tunes the service.
type Config struct {
	SourceDir           string
	ConfidenceThreshold float64
	MinTrainingRecords  int
	VocabularySize      int
	Estimators          int
}

// Service is the prediction orchestrator.
type Service struct {
	cfg      Config
	gate     *spamgate.Gate
	corpus   *ingest.Ingestor
	store    *store.ArtifactStore
	archiver Archiver
	tel      *telemetry.Provider
	log      logger.Logger

	snapshot  atomic.Pointer[model.Snapshot]
	threshold atomic.Uint64 // math.Float64bits

	// Serializes training and snapshot replacement. Predictions only read
	// the atomic pointer and never take this lock.
	trainMu sync.Mutex
}

// New creates the service. The archiver and telemetry provider may be nil.
func New(cfg Config, gate *spamgate.Gate, corpus *ingest.Ingestor, artifacts *store.ArtifactStore, archiver Archiver, tel *telemetry.Provider, log logger.Logger) *Service {
	s := &Service{
		cfg:      cfg,
		gate:     gate,
		corpus:   corpus,
		store:    artifacts,
		archiver: archiver,
		tel:      tel,
		log:      log,
	}
	s.threshold.Store(math.Float64bits(cfg.ConfidenceThreshold))
	return s
}

// IsTrained reports whether a trained model is currently published.
func (s *Service) IsTrained() bool {
	return s.snapshot.Load() != nil
}

// Threshold returns the current confidence threshold.
func (s *Service) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetConfidenceThreshold replaces the moderation threshold. Takes effect for
// the next prediction.
func (s *Service) SetConfidenceThreshold(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, v)
	}
	s.threshold.Store(math.Float64bits(v))
	s.log.Info("confidence threshold updated", logger.Float64("threshold", v))
	return nil
}

// Predict runs the full triage pipeline for one ticket. It always returns a
// usable result: spam and untrained-model cases produce their terminal
// results, and model errors degrade to the fallback result.
func (s *Service) Predict(ctx context.Context, title, description string) domain.Prediction {
	ctx, span := s.tel.StartSpan(ctx, "triage.predict")
	defer span.End()
	start := time.Now()

	pred, outcome := s.predict(title, description)

	s.tel.RecordPrediction(ctx, outcome, pred.Confidence, pred.NeedsModeration, time.Since(start))
	s.archivePrediction(ctx, title, pred)
	return pred
}

func (s *Service) predict(title, description string) (domain.Prediction, string) {
	if spam, reason := s.gate.Evaluate(title, description); spam {
		s.log.Info("request blocked by spam gate", logger.String("reason", reason))
		return domain.SpamPrediction(reason), telemetry.OutcomeSpam
	}

	snap := s.snapshot.Load()
	if snap == nil {
		return domain.FallbackPrediction(), telemetry.OutcomeFallback
	}

	scores, err := snap.Predict(domain.JoinText(title, description))
	if err != nil {
		s.log.Warn("prediction degraded to fallback", logger.Error(err))
		return domain.FallbackPrediction(), telemetry.OutcomeFallback
	}

	threshold := s.Threshold()
	confidence := minConfidence(scores)
	needsModeration, reason := moderate(confidence, scores, threshold)

	return domain.Prediction{
		Group:            scores.Group,
		Expert:           scores.Expert,
		Label:            scores.Label,
		Confidence:       round3(confidence),
		GroupConfidence:  round3(scores.GroupConf),
		ExpertConfidence: round3(scores.ExpertConf),
		LabelConfidence:  round3(scores.LabelConf),
		NeedsModeration:  needsModeration,
		ModerationReason: reason,
	}, telemetry.OutcomeOK
}

// moderate decides whether a prediction needs a human look. Comparisons are
// strictly below the threshold: a confidence exactly at the threshold passes.
func moderate(confidence float64, scores model.HeadScores, threshold float64) (bool, string) {
	var reason string
	needs := false

	if confidence < threshold {
		needs = true
		if confidence < veryLowConfidence {
			reason = reasonVeryLowConfidence
		} else {
			reason = fmt.Sprintf(reasonLowConfidenceFmt, confidence*100)
		}
	}

	var weak []string
	if scores.GroupConf < threshold {
		weak = append(weak, "группа")
	}
	if scores.ExpertConf < threshold {
		weak = append(weak, "эксперт")
	}
	if scores.LabelConf < threshold {
		weak = append(weak, "метка")
	}
	if len(weak) > 0 {
		needs = true
		if reason == "" {
			reason = reasonWeakHeadsPrefix + strings.Join(weak, ", ")
		}
	}
	return needs, reason
}

func minConfidence(s model.HeadScores) float64 {
	return math.Min(s.GroupConf, math.Min(s.ExpertConf, s.LabelConf))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Ingest loads new source files from the configured directory into the
// corpus. Returns the number of records added; already-ingested files are a
// successful no-op.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	ctx, span := s.tel.StartSpan(ctx, "triage.ingest")
	defer span.End()

	before := s.corpus.Stats().IngestedFilesInfo
	added, err := s.corpus.Ingest(s.cfg.SourceDir)
	if err != nil {
		return 0, err
	}

	stats := s.corpus.Stats()
	s.tel.RecordIngestion(ctx, len(stats.IngestedFilesInfo)-len(before), added)
	s.tel.SetCorpusSize(stats.TotalRecords)
	s.archiveBatch(ctx, added)
	s.archiveLedger(ctx, before, stats.IngestedFilesInfo)
	return added, nil
}

// Train fits a new model on the current corpus and publishes it atomically.
// On any failure the previously published model stays in place.
func (s *Service) Train(ctx context.Context) error {
	ctx, span := s.tel.StartSpan(ctx, "triage.train")
	defer span.End()

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	start := time.Now()
	snap, err := model.Train(s.corpus.Records(), model.TrainConfig{
		MinRecords:     s.cfg.MinTrainingRecords,
		VocabularySize: s.cfg.VocabularySize,
		Estimators:     s.cfg.Estimators,
		Threshold:      s.Threshold(),
	})
	s.tel.RecordTraining(ctx, err == nil, time.Since(start))
	if err != nil {
		s.log.Error("training failed", logger.Error(err))
		return fmt.Errorf("train model: %w", err)
	}

	s.snapshot.Store(snap)
	s.log.Info("model trained",
		logger.Int("records", snap.RecordCount),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// IngestAndTrain loads new data and retrains in one step.
func (s *Service) IngestAndTrain(ctx context.Context) (int, error) {
	added, err := s.Ingest(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.Train(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// ForceReloadAndRetrain drops one file (or, with an empty path, every file)
// from the ingested ledger, re-ingests and retrains. Reloaded records are
// appended again without deduplication.
func (s *Service) ForceReloadAndRetrain(ctx context.Context, path string) (int, error) {
	if path == "" {
		if err := s.corpus.ForceReloadAll(s.cfg.SourceDir); err != nil {
			return 0, err
		}
	} else if !s.corpus.ForceReloadOne(path) {
		return 0, fmt.Errorf("source file not ingested: %s", path)
	}
	return s.IngestAndTrain(ctx)
}

// Save persists the current model to the artifact store.
func (s *Service) Save(ctx context.Context) error {
	_, span := s.tel.StartSpan(ctx, "triage.save")
	defer span.End()

	snap := s.snapshot.Load()
	if snap == nil {
		return ErrNotTrained
	}
	if err := s.store.Save(snap); err != nil {
		return fmt.Errorf("save artifacts: %w", err)
	}
	s.log.Info("model artifacts saved", logger.Int("records", snap.RecordCount))
	return nil
}

// Load restores the model from the artifact store and publishes it. The
// stored threshold becomes the active one. Returns store.ErrNoBundle when
// nothing has been saved yet.
func (s *Service) Load(ctx context.Context) error {
	_, span := s.tel.StartSpan(ctx, "triage.load")
	defer span.End()

	snap, err := s.store.Load()
	if err != nil {
		return err
	}

	s.trainMu.Lock()
	s.snapshot.Store(snap)
	s.threshold.Store(math.Float64bits(snap.Threshold))
	s.trainMu.Unlock()

	s.log.Info("model artifacts loaded",
		logger.Int("records", snap.RecordCount),
		logger.Float64("threshold", snap.Threshold),
	)
	return nil
}

// Clear drops the published model, the corpus, the stored artifacts and the
// write-through archive, and resets the threshold to its configured value.
func (s *Service) Clear(ctx context.Context) error {
	_, span := s.tel.StartSpan(ctx, "triage.clear")
	defer span.End()

	s.trainMu.Lock()
	s.snapshot.Store(nil)
	s.threshold.Store(math.Float64bits(s.cfg.ConfidenceThreshold))
	s.trainMu.Unlock()

	s.corpus.Clear()
	s.tel.SetCorpusSize(0)
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	if s.archiver != nil {
		if err := s.archiver.Clear(ctx); err != nil {
			return fmt.Errorf("clear archive: %w", err)
		}
	}
	s.log.Info("model and corpus cleared")
	return nil
}

// Stats summarizes the corpus, the ingested files and the trained model.
func (s *Service) Stats() (domain.Stats, ModelInfo) {
	stats := s.corpus.Stats()
	info := ModelInfo{Threshold: s.Threshold()}
	if snap := s.snapshot.Load(); snap != nil {
		info.Trained = true
		info.TrainedAt = snap.TrainedAt
		info.RecordCount = snap.RecordCount
		info.Groups = snap.Group.Encoder.Len()
		info.Experts = snap.Expert.Encoder.Len()
		info.Labels = snap.Label.Encoder.Len()
	}
	return stats, info
}

// ModelInfo describes the currently published model.
type ModelInfo struct {
	Trained     bool      `json:"trained"`
	TrainedAt   time.Time `json:"trained_at,omitzero"`
	RecordCount int       `json:"record_count"`
	Groups      int       `json:"groups"`
	Experts     int       `json:"experts"`
	Labels      int       `json:"labels"`
	Threshold   float64   `json:"confidence_threshold"`
}

// Groups lists the known group names, sorted for Russian text.
func (s *Service) Groups() []string { return s.corpus.Groups() }

// Experts lists the known expert names, sorted for Russian text.
func (s *Service) Experts() []string { return s.corpus.Experts() }

// Labels lists the known labels, sorted for Russian text.
func (s *Service) Labels() []string { return s.corpus.Labels() }

func (s *Service) archivePrediction(ctx context.Context, title string, p domain.Prediction) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.SavePrediction(ctx, title, p); err != nil {
		s.log.Warn("failed to archive prediction", logger.Error(err))
	}
}

// archiveBatch writes the newest corpus records through to the archive. The
// freshly ingested batch sits at the front of the corpus.
func (s *Service) archiveBatch(ctx context.Context, added int) {
	if s.archiver == nil || added == 0 {
		return
	}
	records := s.corpus.Records()
	if added > len(records) {
		added = len(records)
	}
	if err := s.archiver.SaveBatch(ctx, records[:added]); err != nil {
		s.log.Warn("failed to archive ingested batch", logger.Error(err))
	}
}

// archiveLedger writes ledger entries touched by the last ingestion through
// to the archive. Re-ingested files show up with a fresh load time.
func (s *Service) archiveLedger(ctx context.Context, before, after map[string]domain.SourceFileInfo) {
	if s.archiver == nil {
		return
	}
	for path, info := range after {
		if prev, ok := before[path]; ok && prev.LoadedAt.Equal(info.LoadedAt) {
			continue
		}
		if err := s.archiver.MarkIngested(ctx, path, info); err != nil {
			s.log.Warn("failed to archive ingest ledger",
				logger.String("file", path),
				logger.Error(err),
			)
		}
	}
}
