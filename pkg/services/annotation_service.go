package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/repositories"
)

// AnnotationService orchestrates server-side annotation lifecycle. Every
// mutation publishes the matching annotation.* event for webhook fan-out.
type AnnotationService interface {
	// Create persists an annotation under a session, assigning id, creation
	// time and pending status when absent.
	Create(ctx context.Context, sessionID string, annotation *models.Annotation) error

	// Get returns the annotation or apperrors.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Annotation, error)

	// Patch merges the update fields into the stored annotation and bumps
	// updatedAt. Unknown ids report apperrors.ErrNotFound; nothing is created.
	Patch(ctx context.Context, id string, updates map[string]any) (*models.Annotation, error)

	// Delete removes the annotation.
	Delete(ctx context.Context, id string) error

	// ListPending returns a session's annotations awaiting the agent.
	ListPending(ctx context.Context, sessionID string) ([]models.Annotation, error)

	// ListAllPending returns pending annotations across all sessions.
	ListAllPending(ctx context.Context) ([]models.Annotation, error)

	// Acknowledge marks the annotation as seen by the agent.
	Acknowledge(ctx context.Context, id string) (*models.Annotation, error)

	// Resolve marks the annotation resolved, optionally appending an agent
	// thread message.
	Resolve(ctx context.Context, id, message, resolvedBy string) (*models.Annotation, error)

	// Dismiss marks the annotation dismissed with a reason.
	Dismiss(ctx context.Context, id, reason string) (*models.Annotation, error)

	// Reply appends a thread message without changing status.
	Reply(ctx context.Context, id string, role models.ThreadRole, message string) (*models.Annotation, error)
}

type annotationService struct {
	annotations repositories.AnnotationRepository
	bus         *events.Bus
	logger      *zap.Logger
}

// NewAnnotationService creates a new annotation service. bus may be nil.
func NewAnnotationService(annotations repositories.AnnotationRepository, bus *events.Bus, logger *zap.Logger) AnnotationService {
	return &annotationService{annotations: annotations, bus: bus, logger: logger}
}

func (s *annotationService) Create(ctx context.Context, sessionID string, annotation *models.Annotation) error {
	annotation.SessionID = sessionID
	if err := s.annotations.Create(ctx, annotation); err != nil {
		return err
	}
	s.publish(events.TopicAnnotationCreated, sessionID, annotation)
	return nil
}

func (s *annotationService) Get(ctx context.Context, id string) (*models.Annotation, error) {
	return s.annotations.Get(ctx, id)
}

func (s *annotationService) Patch(ctx context.Context, id string, updates map[string]any) (*models.Annotation, error) {
	existing, err := s.annotations.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := mergeAnnotation(existing, updates)
	if err != nil {
		return nil, err
	}
	merged.ID = existing.ID
	merged.SessionID = existing.SessionID

	if err := s.annotations.Update(ctx, merged); err != nil {
		return nil, err
	}
	s.publish(events.TopicAnnotationUpdated, merged.SessionID, merged)
	return merged, nil
}

func (s *annotationService) Delete(ctx context.Context, id string) error {
	existing, err := s.annotations.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.annotations.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(events.TopicAnnotationDeleted, existing.SessionID, existing)
	return nil
}

func (s *annotationService) ListPending(ctx context.Context, sessionID string) ([]models.Annotation, error) {
	return s.annotations.ListPending(ctx, sessionID)
}

func (s *annotationService) ListAllPending(ctx context.Context) ([]models.Annotation, error) {
	return s.annotations.ListAllPending(ctx)
}

func (s *annotationService) Acknowledge(ctx context.Context, id string) (*models.Annotation, error) {
	return s.transition(ctx, id, func(a *models.Annotation) {
		a.Status = models.StatusAcknowledged
	})
}

func (s *annotationService) Resolve(ctx context.Context, id, message, resolvedBy string) (*models.Annotation, error) {
	return s.transition(ctx, id, func(a *models.Annotation) {
		now := time.Now().UTC()
		a.Status = models.StatusResolved
		a.ResolvedAt = &now
		a.ResolvedBy = resolvedBy
		if message != "" {
			appendThreadMessage(a, models.RoleAgent, message)
		}
	})
}

func (s *annotationService) Dismiss(ctx context.Context, id, reason string) (*models.Annotation, error) {
	return s.transition(ctx, id, func(a *models.Annotation) {
		a.Status = models.StatusDismissed
		if reason != "" {
			appendThreadMessage(a, models.RoleAgent, reason)
		}
	})
}

func (s *annotationService) Reply(ctx context.Context, id string, role models.ThreadRole, message string) (*models.Annotation, error) {
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	return s.transition(ctx, id, func(a *models.Annotation) {
		appendThreadMessage(a, role, message)
	})
}

// transition applies fn to the stored annotation and persists the result.
func (s *annotationService) transition(ctx context.Context, id string, fn func(*models.Annotation)) (*models.Annotation, error) {
	a, err := s.annotations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(a)
	if err := s.annotations.Update(ctx, a); err != nil {
		return nil, err
	}
	s.publish(events.TopicAnnotationUpdated, a.SessionID, a)
	return a, nil
}

func (s *annotationService) publish(topic, sessionID string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(topic, sessionID, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}

// appendThreadMessage adds a message to the annotation's thread.
func appendThreadMessage(a *models.Annotation, role models.ThreadRole, content string) {
	a.Thread = append(a.Thread, models.ThreadMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// mergeAnnotation applies a sparse JSON update map over the existing entity.
// Round-tripping through JSON keeps the merge aligned with the wire field
// names without a hand-maintained field switch.
func mergeAnnotation(existing *models.Annotation, updates map[string]any) (*models.Annotation, error) {
	base, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotation: %w", err)
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal annotation: %w", err)
	}
	for k, v := range updates {
		merged[k] = v
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged annotation: %w", err)
	}

	var result models.Annotation
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid annotation update: %w", err)
	}
	return &result, nil
}
