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

// AnnotationRepository defines the interface for annotation data access. The
// full annotation entity is stored as an opaque serialized payload keyed by
// id and session id; status is mirrored into its own column for filtering.
type AnnotationRepository interface {
	Create(ctx context.Context, annotation *models.Annotation) error
	Get(ctx context.Context, id string) (*models.Annotation, error)
	Update(ctx context.Context, annotation *models.Annotation) error
	Delete(ctx context.Context, id string) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Annotation, error)
	ListPending(ctx context.Context, sessionID string) ([]models.Annotation, error)
	ListAllPending(ctx context.Context) ([]models.Annotation, error)
}

// annotationRepository implements AnnotationRepository using SQLite.
type annotationRepository struct {
	db *database.DB
}

// NewAnnotationRepository creates a new annotation repository.
func NewAnnotationRepository(db *database.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

// Create inserts a new annotation, assigning id, creation time and pending
// status when absent.
func (r *annotationRepository) Create(ctx context.Context, annotation *models.Annotation) error {
	if annotation.ID == "" {
		annotation.ID = uuid.NewString()
	}
	if annotation.Status == "" {
		annotation.Status = models.StatusPending
	}
	if annotation.Timestamp.IsZero() {
		annotation.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO annotations (id, session_id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		annotation.ID, annotation.SessionID, annotation.Status, string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create annotation: %w", err)
	}
	return nil
}

// Get retrieves an annotation by id.
func (r *annotationRepository) Get(ctx context.Context, id string) (*models.Annotation, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM annotations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return decodeAnnotation(payload)
}

// Update replaces the stored payload and bumps updated_at. Missing ids report
// ErrNotFound; nothing is created.
func (r *annotationRepository) Update(ctx context.Context, annotation *models.Annotation) error {
	payload, err := json.Marshal(annotation)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE annotations SET status = ?, payload = ?, updated_at = ?
		WHERE id = ?`,
		annotation.Status, string(payload), time.Now().UTC(), annotation.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
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

// Delete removes an annotation by id.
func (r *annotationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
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

// ListBySession returns a session's annotations in creation order.
func (r *annotationRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Annotation, error) {
	return r.list(ctx, `
		SELECT payload FROM annotations
		WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
}

// ListPending returns a session's annotations that still await the agent:
// status pending (an unset status in the payload is normalized to pending at
// insert time).
func (r *annotationRepository) ListPending(ctx context.Context, sessionID string) ([]models.Annotation, error) {
	return r.list(ctx, `
		SELECT payload FROM annotations
		WHERE session_id = ? AND status = ? ORDER BY created_at ASC`,
		sessionID, models.StatusPending)
}

// ListAllPending returns pending annotations across all sessions.
func (r *annotationRepository) ListAllPending(ctx context.Context) ([]models.Annotation, error) {
	return r.list(ctx, `
		SELECT payload FROM annotations
		WHERE status = ? ORDER BY created_at ASC`, models.StatusPending)
}

func (r *annotationRepository) list(ctx context.Context, query string, args ...any) ([]models.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []models.Annotation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		a, err := decodeAnnotation(payload)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, *a)
	}
	return annotations, rows.Err()
}

func decodeAnnotation(payload string) (*models.Annotation, error) {
	var a models.Annotation
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal annotation: %w", err)
	}
	return &a, nil
}
