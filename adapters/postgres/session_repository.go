package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"epistat/domain/core"
	"epistat/ports"

	"github.com/jmoiron/sqlx"
)

// SessionRepositoryImpl implements SessionRepository for PostgreSQL
type SessionRepositoryImpl struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) ports.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

// Bind associates a session with a dataset, replacing any earlier binding
func (r *SessionRepositoryImpl) Bind(ctx context.Context, sessionID core.SessionID, datasetID core.DatasetID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_sessions (id, dataset_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET dataset_id = EXCLUDED.dataset_id, updated_at = NOW()
	`, sessionID, datasetID)
	if err != nil {
		return fmt.Errorf("failed to bind session: %w", err)
	}
	return nil
}

// DatasetFor returns the dataset bound to the session
func (r *SessionRepositoryImpl) DatasetFor(ctx context.Context, sessionID core.SessionID) (core.DatasetID, error) {
	var datasetID core.DatasetID
	err := r.db.GetContext(ctx, &datasetID, `SELECT dataset_id FROM upload_sessions WHERE id = $1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrSessionNotFound
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return datasetID, nil
}

// Clear removes the session's binding
func (r *SessionRepositoryImpl) Clear(ctx context.Context, sessionID core.SessionID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
