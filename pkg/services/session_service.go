// Package services orchestrates the server's business logic over the
// repositories and the event bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/repositories"
)

// CreateSessionRequest is the payload for session get-or-create.
type CreateSessionRequest struct {
	URL       string         `json:"url"`
	ProjectID string         `json:"projectId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionService orchestrates session lifecycle.
type SessionService interface {
	// GetOrCreate returns the existing active session for the url when one
	// exists, else creates a new one. created reports which happened.
	GetOrCreate(ctx context.Context, req CreateSessionRequest) (session *models.Session, created bool, err error)

	// Get returns the session with its annotations.
	Get(ctx context.Context, id string) (*models.SessionWithAnnotations, error)

	// List returns sessions, optionally filtered by status, newest first.
	List(ctx context.Context, status *models.SessionStatus, limit int) ([]models.Session, error)

	// UpdateStatus transitions the session lifecycle status.
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

type sessionService struct {
	sessions    repositories.SessionRepository
	annotations repositories.AnnotationRepository
	logger      *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(sessions repositories.SessionRepository, annotations repositories.AnnotationRepository, logger *zap.Logger) SessionService {
	return &sessionService{sessions: sessions, annotations: annotations, logger: logger}
}

func (s *sessionService) GetOrCreate(ctx context.Context, req CreateSessionRequest) (*models.Session, bool, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, false, fmt.Errorf("%w: url is required", apperrors.ErrValidation)
	}

	existing, err := s.sessions.FindActiveByURL(ctx, url)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	session := &models.Session{
		URL:       url,
		ProjectID: req.ProjectID,
		Metadata:  req.Metadata,
		Status:    models.SessionActive,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, false, err
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("url", session.URL))
	return session, true, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*models.SessionWithAnnotations, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	annotations, err := s.annotations.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	if annotations == nil {
		annotations = []models.Annotation{}
	}

	return &models.SessionWithAnnotations{
		Session:     *session,
		Annotations: annotations,
	}, nil
}

func (s *sessionService) List(ctx context.Context, status *models.SessionStatus, limit int) ([]models.Session, error) {
	if status != nil && !models.IsValidSessionStatus(*status) {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrValidation, *status)
	}
	return s.sessions.List(ctx, repositories.SessionListFilters{Status: status, Limit: limit})
}

func (s *sessionService) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if !models.IsValidSessionStatus(status) {
		return fmt.Errorf("%w: invalid status %q", apperrors.ErrValidation, status)
	}
	return s.sessions.UpdateStatus(ctx, id, status)
}
