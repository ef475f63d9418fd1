package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"loto-issuer/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// IssuanceRepository records completed issuances for the history view.
type IssuanceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewIssuanceRepository(sqlDB *sql.DB, logger zerolog.Logger) *IssuanceRepository {
	return &IssuanceRepository{db: sqlDB, logger: logger}
}

func (r *IssuanceRepository) Insert(ctx context.Context, rec *domain.IssuanceRecord) error {
	if rec.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate issuance id: %w", err)
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issuances (id, loto_type, model, count, round, data_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.LotoType, rec.Model, rec.Count, rec.Round, rec.DataSource, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert issuance: %w", err)
	}

	r.logger.Debug().
		Str("id", rec.ID).
		Str("loto_type", rec.LotoType).
		Str("model", rec.Model).
		Int("count", rec.Count).
		Msg("issuance recorded")
	return nil
}

func (r *IssuanceRepository) ListRecent(ctx context.Context, limit int) ([]*domain.IssuanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, loto_type, model, count, round, data_source, created_at
		FROM issuances
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	defer rows.Close()

	var records []*domain.IssuanceRecord
	for rows.Next() {
		rec := &domain.IssuanceRecord{}
		if err := rows.Scan(&rec.ID, &rec.LotoType, &rec.Model, &rec.Count, &rec.Round, &rec.DataSource, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issuance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issuances: %w", err)
	}
	return records, nil
}
