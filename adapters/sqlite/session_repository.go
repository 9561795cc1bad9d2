package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"epistat/domain/core"
	"epistat/ports"

	"github.com/jmoiron/sqlx"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) ports.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Bind(ctx context.Context, sessionID core.SessionID, datasetID core.DatasetID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, dataset_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET dataset_id = excluded.dataset_id, updated_at = excluded.updated_at
	`, sessionID, datasetID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

func (r *sessionRepository) DatasetFor(ctx context.Context, sessionID core.SessionID) (core.DatasetID, error) {
	var datasetID core.DatasetID
	err := r.db.GetContext(ctx, &datasetID, `SELECT dataset_id FROM upload_sessions WHERE id = ?`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return datasetID, nil
}

func (r *sessionRepository) Clear(ctx context.Context, sessionID core.SessionID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
