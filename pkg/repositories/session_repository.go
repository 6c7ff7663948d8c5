// Package repositories implements data access over the server's SQLite store.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/database"
	"github.com/agentation/agentation-server/pkg/models"
)

// SessionListFilters narrows List results.
type SessionListFilters struct {
	Status *models.SessionStatus
	Limit  int
}

// SessionRepository defines the interface for session data access.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	FindActiveByURL(ctx context.Context, url string) (*models.Session, error)
	List(ctx context.Context, filters SessionListFilters) ([]models.Session, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	Delete(ctx context.Context, id string) error
}

// sessionRepository implements SessionRepository using SQLite.
type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session, generating id and timestamps when absent.
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionActive
	}

	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, url, status, project_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.URL, session.Status, session.ProjectID, string(metadata),
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by id.
func (r *sessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, url, status, project_id, metadata, created_at, updated_at
		FROM sessions WHERE id = ?`, id))
}

// FindActiveByURL returns the most recent active session for the url, or
// ErrNotFound.
func (r *sessionRepository) FindActiveByURL(ctx context.Context, url string) (*models.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT id, url, status, project_id, metadata, created_at, updated_at
		FROM sessions WHERE url = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`, url, models.SessionActive))
}

// List returns sessions newest-first, optionally filtered by status.
func (r *sessionRepository) List(ctx context.Context, filters SessionListFilters) ([]models.Session, error) {
	query := `
		SELECT id, url, status, project_id, metadata, created_at, updated_at
		FROM sessions`
	var args []any
	if filters.Status != nil {
		query += " WHERE status = ?"
		args = append(args, *filters.Status)
	}
	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateStatus sets the session status and bumps updated_at.
func (r *sessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes the session; its annotations cascade.
func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sessionRepository) scanOne(row *sql.Row) (*models.Session, error) {
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return session, err
}

func scanSession(row rowScanner) (*models.Session, error) {
	var session models.Session
	var projectID sql.NullString
	var metadata sql.NullString

	err := row.Scan(&session.ID, &session.URL, &session.Status, &projectID,
		&metadata, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	session.ProjectID = projectID.String
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &session, nil
}
