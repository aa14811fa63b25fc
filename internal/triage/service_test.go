//nolint:testpackage // Testing internal triage requires same package access
package triage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/ingest"
	"github.com/rakhimov-me/smax-ai/internal/logger"
	"github.com/rakhimov-me/smax-ai/internal/model"
	"github.com/rakhimov-me/smax-ai/internal/spamgate"
	"github.com/rakhimov-me/smax-ai/internal/store"
)

// corpusReader serves a fixed training corpus from one fake file.
type corpusReader struct {
	rows []domain.RawRow
}

func (c *corpusReader) ListSources(dir string) ([]string, error) {
	return []string{"corpus.xlsx"}, nil
}

func (c *corpusReader) Read(path string) (ingest.Table, error) {
	return ingest.Table{
		Columns: []string{domain.ColumnTitle, domain.ColumnExpert, domain.ColumnGroup, domain.ColumnLabel},
		Rows:    c.rows,
	}, nil
}

func corpusRows(n int) []domain.RawRow {
	rows := make([]domain.RawRow, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			rows = append(rows, domain.RawRow{
				domain.ColumnTitle:  fmt.Sprintf("Не работает принтер в кабинете %d", i),
				domain.ColumnExpert: "Иванов Иван",
				domain.ColumnGroup:  "Группа печати",
				domain.ColumnLabel:  "Принтеры",
			})
		} else {
			rows = append(rows, domain.RawRow{
				domain.ColumnTitle:  fmt.Sprintf("Не открывается почта у сотрудника %d", i),
				domain.ColumnExpert: "Петрова Анна",
				domain.ColumnGroup:  "Группа почты",
				domain.ColumnLabel:  "Почтовые сервисы",
			})
		}
	}
	return rows
}

func newTestService(t *testing.T, rows []domain.RawRow) *Service {
	t.Helper()
	gate := spamgate.New(spamgate.Config{Policy: spamgate.PolicyLoose})
	corpus := ingest.New(&corpusReader{rows: rows}, logger.Nop())
	artifacts := store.New(filepath.Join(t.TempDir(), "model"))

	return New(Config{
		SourceDir:           "dir",
		ConfidenceThreshold: 0.25,
		Estimators:          10,
	}, gate, corpus, artifacts, nil, nil, logger.Nop())
}

func TestService_PredictUntrained(t *testing.T) {
	svc := newTestService(t, nil)

	pred := svc.Predict(context.Background(), "Не работает принтер", "")

	if !pred.Fallback {
		t.Fatal("untrained service must return the fallback result")
	}
	if pred.Group != domain.FallbackGroup || pred.Expert != domain.FallbackExpert {
		t.Errorf("unexpected fallback routing: %q / %q", pred.Group, pred.Expert)
	}
	if pred.Confidence != domain.FallbackConfidence {
		t.Errorf("expected fallback confidence %v, got %v", domain.FallbackConfidence, pred.Confidence)
	}
	if !pred.NeedsModeration {
		t.Error("fallback result must need moderation")
	}
	if pred.ModerationReason != domain.FallbackModerationReason {
		t.Errorf("unexpected moderation reason: %q", pred.ModerationReason)
	}
}

func TestService_PredictSpamShortCircuits(t *testing.T) {
	svc := newTestService(t, corpusRows(10))
	if _, err := svc.IngestAndTrain(context.Background()); err != nil {
		t.Fatalf("ingest and train: %v", err)
	}

	pred := svc.Predict(context.Background(), "a", "")

	if !pred.IsSpam {
		t.Fatal("expected spam verdict for a one-letter title")
	}
	if pred.Group != domain.SpamGroup || pred.Expert != domain.SpamExpert || pred.Label != domain.SpamLabel {
		t.Errorf("unexpected spam routing: %q / %q / %q", pred.Group, pred.Expert, pred.Label)
	}
	if pred.SpamReason == "" {
		t.Error("spam result must carry the gate's reason")
	}
	if !pred.NeedsModeration || pred.ModerationReason != domain.SpamModerationReason {
		t.Errorf("unexpected moderation state: %v %q", pred.NeedsModeration, pred.ModerationReason)
	}
}

func TestService_IngestAndTrain(t *testing.T) {
	svc := newTestService(t, corpusRows(12))

	added, err := svc.IngestAndTrain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 12 {
		t.Errorf("expected 12 records, got %d", added)
	}
	if !svc.IsTrained() {
		t.Fatal("service must be trained after IngestAndTrain")
	}

	pred := svc.Predict(context.Background(), "Не работает принтер, мигает лампочка", "")
	if pred.IsSpam || pred.Fallback {
		t.Fatalf("expected a model prediction, got %+v", pred)
	}
	if pred.Group != "Группа печати" {
		t.Errorf("expected printing group, got %q", pred.Group)
	}
	if pred.Confidence <= 0 || pred.Confidence > 1 {
		t.Errorf("confidence out of range: %v", pred.Confidence)
	}
}

func TestService_TrainInsufficientDataPreservesState(t *testing.T) {
	svc := newTestService(t, corpusRows(9))

	_, err := svc.IngestAndTrain(context.Background())
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if svc.IsTrained() {
		t.Error("failed training must leave the service untrained")
	}
}

func TestService_SetConfidenceThreshold(t *testing.T) {
	svc := newTestService(t, nil)

	if err := svc.SetConfidenceThreshold(0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Threshold() != 0.5 {
		t.Errorf("threshold = %v, want 0.5", svc.Threshold())
	}

	for _, bad := range []float64{-0.1, 1.1, 2} {
		if err := svc.SetConfidenceThreshold(bad); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("SetConfidenceThreshold(%v): expected ErrInvalidThreshold, got %v", bad, err)
		}
	}

	// Boundary values are accepted.
	if err := svc.SetConfidenceThreshold(0); err != nil {
		t.Errorf("threshold 0 must be accepted: %v", err)
	}
	if err := svc.SetConfidenceThreshold(1); err != nil {
		t.Errorf("threshold 1 must be accepted: %v", err)
	}
}

func TestService_SaveLoadClear(t *testing.T) {
	svc := newTestService(t, corpusRows(10))

	if err := svc.Save(context.Background()); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("saving untrained model must fail with ErrNotTrained, got %v", err)
	}
	if err := svc.Load(context.Background()); !errors.Is(err, store.ErrNoBundle) {
		t.Fatalf("loading from an empty store must return ErrNoBundle, got %v", err)
	}

	if _, err := svc.IngestAndTrain(context.Background()); err != nil {
		t.Fatalf("ingest and train: %v", err)
	}
	if err := svc.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := svc.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if svc.IsTrained() {
		t.Error("clear must drop the trained model")
	}
	stats, info := svc.Stats()
	if stats.TotalRecords != 0 {
		t.Errorf("clear must empty the corpus, got %d records", stats.TotalRecords)
	}
	if info.Trained {
		t.Error("model info must report untrained after clear")
	}
	if err := svc.Load(context.Background()); !errors.Is(err, store.ErrNoBundle) {
		t.Errorf("clear must remove stored artifacts, got %v", err)
	}
}

func TestService_StatsReportModel(t *testing.T) {
	svc := newTestService(t, corpusRows(10))
	if _, err := svc.IngestAndTrain(context.Background()); err != nil {
		t.Fatalf("ingest and train: %v", err)
	}

	stats, info := svc.Stats()
	if stats.TotalRecords != 10 {
		t.Errorf("expected 10 records, got %d", stats.TotalRecords)
	}
	if stats.GroupsCount != 2 || stats.ExpertsCount != 2 {
		t.Errorf("unexpected derived sets: %+v", stats)
	}
	if !info.Trained || info.RecordCount != 10 {
		t.Errorf("unexpected model info: %+v", info)
	}
	if info.Groups != 2 || info.Experts != 2 || info.Labels != 2 {
		t.Errorf("unexpected class counts: %+v", info)
	}
	if info.Threshold != 0.25 {
		t.Errorf("expected threshold 0.25, got %v", info.Threshold)
	}
}

func TestModerate(t *testing.T) {
	scores := func(g, e, l float64) model.HeadScores {
		return model.HeadScores{GroupConf: g, ExpertConf: e, LabelConf: l}
	}

	tests := []struct {
		name      string
		scores    model.HeadScores
		threshold float64
		needs     bool
	}{
		{"all confident", scores(0.8, 0.7, 0.9), 0.25, false},
		{"exactly at threshold passes", scores(0.25, 0.5, 0.5), 0.25, false},
		{"just below threshold flagged", scores(0.249, 0.5, 0.5), 0.25, true},
		{"very low confidence", scores(0.05, 0.5, 0.5), 0.25, true},
		{"single weak head", scores(0.9, 0.2, 0.9), 0.25, true},
		{"low threshold admits very low confidence", scores(0.07, 0.5, 0.5), 0.05, false},
		{"below a low threshold still flagged", scores(0.03, 0.5, 0.5), 0.05, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := minConfidence(tt.scores)
			needs, reason := moderate(conf, tt.scores, tt.threshold)
			if needs != tt.needs {
				t.Errorf("moderate() = %v (%s), want %v", needs, reason, tt.needs)
			}
			if needs && reason == "" {
				t.Error("flagged prediction must carry a reason")
			}
			if !needs && reason != "" {
				t.Errorf("clean prediction must not carry a reason, got %q", reason)
			}
		})
	}
}

func TestModerate_Reasons(t *testing.T) {
	s := model.HeadScores{GroupConf: 0.05, ExpertConf: 0.5, LabelConf: 0.5}
	_, reason := moderate(minConfidence(s), s, 0.25)
	if reason != reasonVeryLowConfidence {
		t.Errorf("expected very-low reason, got %q", reason)
	}

	s = model.HeadScores{GroupConf: 0.15, ExpertConf: 0.5, LabelConf: 0.5}
	_, reason = moderate(minConfidence(s), s, 0.25)
	if reason != "Низкая уверенность модели (15.0%) - требуется проверка человеком" {
		t.Errorf("unexpected low-confidence reason: %q", reason)
	}

	// The very-low wording only applies once the threshold check has failed;
	// a threshold under 0.1 admits confidences the default would flag.
	s = model.HeadScores{GroupConf: 0.07, ExpertConf: 0.5, LabelConf: 0.5}
	needs, reason := moderate(minConfidence(s), s, 0.05)
	if needs || reason != "" {
		t.Errorf("confidence above a low threshold must pass, got %v %q", needs, reason)
	}

	s = model.HeadScores{GroupConf: 0.03, ExpertConf: 0.5, LabelConf: 0.5}
	_, reason = moderate(minConfidence(s), s, 0.05)
	if reason != reasonVeryLowConfidence {
		t.Errorf("expected very-low reason under a low threshold, got %q", reason)
	}
}

// recordingArchive captures write-through calls in memory.
type recordingArchive struct {
	batches   [][]domain.TicketRecord
	marked    map[string]domain.SourceFileInfo
	markCalls int
	titles    []string
	clears    int
}

func (a *recordingArchive) SaveBatch(ctx context.Context, records []domain.TicketRecord) error {
	a.batches = append(a.batches, records)
	return nil
}

func (a *recordingArchive) MarkIngested(ctx context.Context, path string, info domain.SourceFileInfo) error {
	if a.marked == nil {
		a.marked = make(map[string]domain.SourceFileInfo)
	}
	a.marked[path] = info
	a.markCalls++
	return nil
}

func (a *recordingArchive) SavePrediction(ctx context.Context, title string, p domain.Prediction) error {
	a.titles = append(a.titles, title)
	return nil
}

func (a *recordingArchive) Clear(ctx context.Context) error {
	a.clears++
	a.batches = nil
	a.marked = nil
	return nil
}

func TestService_ArchiveWriteThrough(t *testing.T) {
	arch := &recordingArchive{}
	gate := spamgate.New(spamgate.Config{Policy: spamgate.PolicyLoose})
	corpus := ingest.New(&corpusReader{rows: corpusRows(10)}, logger.Nop())
	artifacts := store.New(filepath.Join(t.TempDir(), "model"))
	svc := New(Config{
		SourceDir:           "dir",
		ConfidenceThreshold: 0.25,
		Estimators:          10,
	}, gate, corpus, artifacts, arch, nil, logger.Nop())

	if _, err := svc.IngestAndTrain(context.Background()); err != nil {
		t.Fatalf("ingest and train: %v", err)
	}
	if len(arch.batches) != 1 || len(arch.batches[0]) != 10 {
		t.Fatalf("expected one archived batch of 10 records, got %d batches", len(arch.batches))
	}
	info, ok := arch.marked["corpus.xlsx"]
	if !ok {
		t.Fatal("ingested file must be marked in the archive ledger")
	}
	if info.Records != 10 {
		t.Errorf("ledger entry records = %d, want 10", info.Records)
	}

	// A no-op re-ingest must not touch the archive again.
	if _, err := svc.Ingest(context.Background()); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if len(arch.batches) != 1 || arch.markCalls != 1 {
		t.Errorf("no-op ingest must not write through, got %d batches and %d marks", len(arch.batches), arch.markCalls)
	}

	svc.Predict(context.Background(), "Не работает принтер", "")
	if len(arch.titles) != 1 || arch.titles[0] != "Не работает принтер" {
		t.Errorf("expected one archived prediction, got %v", arch.titles)
	}

	if err := svc.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if arch.clears != 1 {
		t.Error("clear must drop the archived corpus and ledger")
	}
	if len(arch.marked) != 0 {
		t.Errorf("ledger must be empty after clear, got %d entries", len(arch.marked))
	}
}

func TestService_ForceReloadDuplicates(t *testing.T) {
	svc := newTestService(t, corpusRows(10))
	if _, err := svc.IngestAndTrain(context.Background()); err != nil {
		t.Fatalf("ingest and train: %v", err)
	}

	if _, err := svc.ForceReloadAndRetrain(context.Background(), ""); err != nil {
		t.Fatalf("force reload: %v", err)
	}
	stats, _ := svc.Stats()
	if stats.TotalRecords != 20 {
		t.Errorf("reload must duplicate records, got %d", stats.TotalRecords)
	}
}
