package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"loto-issuer/internal/domain"

	"github.com/rs/zerolog"
)

const (
	sessionKeyToken   = "token"
	sessionKeyProfile = "profile"
)

// SessionRepository is the durable session.Store backend: one key/value
// table holding the bearer token and the cached profile (as JSON).
type SessionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSessionRepository(sqlDB *sql.DB, logger zerolog.Logger) *SessionRepository {
	return &SessionRepository{db: sqlDB, logger: logger}
}

func (r *SessionRepository) get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sessions WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session key %s: %w", key, err)
	}
	return value, nil
}

func (r *SessionRepository) set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write session key %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepository) clear(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear session key %s: %w", key, err)
	}
	return nil
}

func (r *SessionRepository) Token(ctx context.Context) (string, error) {
	return r.get(ctx, sessionKeyToken)
}

func (r *SessionRepository) SetToken(ctx context.Context, token string) error {
	return r.set(ctx, sessionKeyToken, token)
}

func (r *SessionRepository) ClearToken(ctx context.Context) error {
	return r.clear(ctx, sessionKeyToken)
}

func (r *SessionRepository) Profile(ctx context.Context) (*domain.Profile, error) {
	raw, err := r.get(ctx, sessionKeyProfile)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		r.logger.Warn().Err(err).Msg("stored profile is corrupt, dropping it")
		return nil, r.clear(ctx, sessionKeyProfile)
	}
	return &profile, nil
}

func (r *SessionRepository) SetProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return r.clear(ctx, sessionKeyProfile)
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return r.set(ctx, sessionKeyProfile, string(raw))
}

func (r *SessionRepository) ClearProfile(ctx context.Context) error {
	return r.clear(ctx, sessionKeyProfile)
}
