//nolint:testpackage // Testing internal store requires same package access
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rakhimov-me/smax-ai/internal/domain"
	"github.com/rakhimov-me/smax-ai/internal/model"
)

func trainedSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()
	records := make([]domain.TicketRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, domain.TicketRecord{
			Title:    fmt.Sprintf("Не работает принтер %d", i),
			FullText: fmt.Sprintf("Не работает принтер %d", i),
			Group:    "Группа печати",
			Expert:   "Иванов Иван",
			Label:    "Принтеры",
		})
	}
	snap, err := model.Train(records, model.TrainConfig{Estimators: 5, Threshold: 0.25})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return snap
}

func TestArtifactStore_RoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "model"))
	snap := trainedSnapshot(t)

	if err := s.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.RecordCount != snap.RecordCount {
		t.Errorf("record count = %d, want %d", loaded.RecordCount, snap.RecordCount)
	}
	if loaded.Threshold != snap.Threshold {
		t.Errorf("threshold = %f, want %f", loaded.Threshold, snap.Threshold)
	}

	// The restored model must predict.
	scores, err := loaded.Predict("Не работает принтер в кабинете")
	if err != nil {
		t.Fatalf("predict after load: %v", err)
	}
	if scores.Group != "Группа печати" {
		t.Errorf("unexpected group after load: %q", scores.Group)
	}
}

func TestArtifactStore_LoadMissing(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "model"))
	if _, err := s.Load(); !errors.Is(err, ErrNoBundle) {
		t.Errorf("expected ErrNoBundle, got %v", err)
	}
}

func TestArtifactStore_SaveNil(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Save(nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestArtifactStore_Clear(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "model"))

	// Clearing an empty store is fine.
	if err := s.Clear(); err != nil {
		t.Fatalf("clear empty store: %v", err)
	}

	if err := s.Save(trainedSnapshot(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNoBundle) {
		t.Errorf("expected ErrNoBundle after clear, got %v", err)
	}
}

func TestArtifactStore_SaveOverwrites(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "model"))

	first := trainedSnapshot(t)
	if err := s.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := trainedSnapshot(t)
	second.Threshold = 0.5
	if err := s.Save(second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Threshold != 0.5 {
		t.Errorf("expected the newer bundle, got threshold %f", loaded.Threshold)
	}
}
