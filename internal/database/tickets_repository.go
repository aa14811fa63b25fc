package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// TicketsRepository stores ingested ticket records and the ingested-file
// ledger.
type TicketsRepository struct {
	db *sqlx.DB
}

// NewTicketsRepository creates a tickets repository.
func NewTicketsRepository(db *sqlx.DB) *TicketsRepository {
	return &TicketsRepository{db: db}
}

// InsertBatch stores one ingestion batch in a single transaction.
func (r *TicketsRepository) InsertBatch(ctx context.Context, records []domain.TicketRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO tickets (source_code, close_time, title, description, expert, grp, label, url, full_text, source_file)
		VALUES (:source_code, :close_time, :title, :description, :expert, :grp, :label, :url, :full_text, :source_file)
	`
	for _, rec := range records {
		if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
	}
	return tx.Commit()
}

// MarkIngested records that a source file has been processed.
func (r *TicketsRepository) MarkIngested(ctx context.Context, path string, info domain.SourceFileInfo) error {
	const query = `
		INSERT INTO ingested_files (path, records, loaded_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET records = excluded.records, loaded_at = excluded.loaded_at
	`
	if _, err := r.db.ExecContext(ctx, query, path, info.Records, info.LoadedAt); err != nil {
		return fmt.Errorf("mark ingested: %w", err)
	}
	return nil
}

// IngestedFiles returns the persisted ledger.
func (r *TicketsRepository) IngestedFiles(ctx context.Context) (map[string]domain.SourceFileInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT path, records, loaded_at FROM ingested_files`)
	if err != nil {
		return nil, fmt.Errorf("list ingested files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.SourceFileInfo)
	for rows.Next() {
		var (
			path     string
			records  int
			loadedAt time.Time
		)
		if err := rows.Scan(&path, &records, &loadedAt); err != nil {
			return nil, fmt.Errorf("scan ingested file: %w", err)
		}
		out[path] = domain.SourceFileInfo{Records: records, LoadedAt: loadedAt}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingested files: %w", err)
	}
	return out, nil
}

// All returns every stored ticket in insertion order.
func (r *TicketsRepository) All(ctx context.Context) ([]domain.TicketRecord, error) {
	const query = `
		SELECT source_code, close_time, title, description, expert, grp, label, url, full_text, source_file
		FROM tickets
		ORDER BY id
	`
	records := []domain.TicketRecord{}
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return records, nil
}

// Count returns the number of stored tickets.
func (r *TicketsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

// Clear drops all tickets and the ingested-file ledger.
func (r *TicketsRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tickets`); err != nil {
		return fmt.Errorf("clear tickets: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ingested_files`); err != nil {
		return fmt.Errorf("clear ingested files: %w", err)
	}
	return nil
}
