package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// Archive bundles the write-through repositories behind the single surface
// the triage service consumes.
type Archive struct {
	Tickets *TicketsRepository
	History *HistoryRepository
}

// NewArchive creates the archive over one database handle.
func NewArchive(db *sqlx.DB) *Archive {
	return &Archive{
		Tickets: NewTicketsRepository(db),
		History: NewHistoryRepository(db),
	}
}

// SaveBatch persists one ingestion batch.
func (a *Archive) SaveBatch(ctx context.Context, records []domain.TicketRecord) error {
	return a.Tickets.InsertBatch(ctx, records)
}

// MarkIngested persists one ingested-file ledger entry.
func (a *Archive) MarkIngested(ctx context.Context, path string, info domain.SourceFileInfo) error {
	return a.Tickets.MarkIngested(ctx, path, info)
}

// SavePrediction logs one served prediction.
func (a *Archive) SavePrediction(ctx context.Context, title string, p domain.Prediction) error {
	return a.History.Insert(ctx, title, p)
}

// Clear drops the persisted tickets and the ingested-file ledger. The
// prediction history is an audit log and survives a clear.
func (a *Archive) Clear(ctx context.Context) error {
	return a.Tickets.Clear(ctx)
}

// Restore returns the persisted corpus and ledger for startup recovery.
func (a *Archive) Restore(ctx context.Context) ([]domain.TicketRecord, map[string]domain.SourceFileInfo, error) {
	records, err := a.Tickets.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	files, err := a.Tickets.IngestedFiles(ctx)
	if err != nil {
		return nil, nil, err
	}
	return records, files, nil
}
