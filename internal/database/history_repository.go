package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rakhimov-me/smax-ai/internal/domain"
)

// HistoryEntry is one logged prediction.
type HistoryEntry struct {
	ID               int64     `db:"id" json:"id"`
	Title            string    `db:"title" json:"title"`
	Group            string    `db:"grp" json:"group"`
	Expert           string    `db:"expert" json:"expert"`
	Label            string    `db:"label" json:"label"`
	Confidence       float64   `db:"confidence" json:"confidence"`
	IsSpam           bool      `db:"is_spam" json:"is_spam"`
	Fallback         bool      `db:"fallback" json:"fallback"`
	NeedsModeration  bool      `db:"needs_moderation" json:"needs_moderation"`
	ModerationReason string    `db:"moderation_reason" json:"moderation_reason,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// HistoryStats aggregates the prediction log.
type HistoryStats struct {
	Total           int     `db:"total" json:"total"`
	Spam            int     `db:"spam" json:"spam"`
	Fallback        int     `db:"fallback" json:"fallback"`
	NeedsModeration int     `db:"needs_moderation" json:"needs_moderation"`
	AvgConfidence   float64 `db:"avg_confidence" json:"avg_confidence"`
}

// HistoryRepository logs every served prediction.
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a prediction-history repository.
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert logs one prediction.
func (r *HistoryRepository) Insert(ctx context.Context, title string, p domain.Prediction) error {
	const query = `
		INSERT INTO prediction_history (title, grp, expert, label, confidence, is_spam, fallback, needs_moderation, moderation_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		title, p.Group, p.Expert, p.Label, p.Confidence,
		p.IsSpam, p.Fallback, p.NeedsModeration, p.ModerationReason,
	)
	if err != nil {
		return fmt.Errorf("insert prediction history: %w", err)
	}
	return nil
}

// Stats aggregates the whole prediction log.
func (r *HistoryRepository) Stats(ctx context.Context) (HistoryStats, error) {
	const query = `
		SELECT
			COUNT(*)                                   AS total,
			COALESCE(SUM(is_spam), 0)                  AS spam,
			COALESCE(SUM(fallback), 0)                 AS fallback,
			COALESCE(SUM(needs_moderation), 0)         AS needs_moderation,
			COALESCE(AVG(confidence), 0)               AS avg_confidence
		FROM prediction_history
	`
	var stats HistoryStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return HistoryStats{}, fmt.Errorf("aggregate prediction history: %w", err)
	}
	return stats, nil
}

// Recent returns the latest entries, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, title, grp, expert, label, confidence, is_spam, fallback, needs_moderation, moderation_reason, created_at
		FROM prediction_history
		ORDER BY id DESC
		LIMIT ?
	`
	entries := []HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list prediction history: %w", err)
	}
	return entries, nil
}
