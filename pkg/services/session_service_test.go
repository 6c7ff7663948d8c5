package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/database"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/repositories"
)

func newSessionService(t *testing.T) (SessionService, repositories.AnnotationRepository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	annotations := repositories.NewAnnotationRepository(db)
	svc := NewSessionService(repositories.NewSessionRepository(db), annotations, zap.NewNop())
	return svc, annotations
}

func TestSessionService_GetOrCreate_CreatesNewSession(t *testing.T) {
	svc, _ := newSessionService(t)

	session, created, err := svc.GetOrCreate(context.Background(), CreateSessionRequest{
		URL: "http://localhost:3000/checkout",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionActive, session.Status)
}

func TestSessionService_GetOrCreate_ReusesActiveSession(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	first, created, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)
	assert.False(t, created, "same url joins the existing session")
	assert.Equal(t, first.ID, second.ID)
}

func TestSessionService_GetOrCreate_NewSessionAfterClose(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	first, _, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, first.ID, models.SessionClosed))

	second, created, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)
	assert.True(t, created, "closed sessions are not reused")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSessionService_GetOrCreate_RequiresURL(t *testing.T) {
	svc, _ := newSessionService(t)

	_, _, err := svc.GetOrCreate(context.Background(), CreateSessionRequest{URL: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSessionService_Get_IncludesAnnotations(t *testing.T) {
	svc, annotations := newSessionService(t)
	ctx := context.Background()

	session, _, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)
	require.NoError(t, annotations.Create(ctx, &models.Annotation{SessionID: session.ID, Comment: "x"}))

	got, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.Session.ID)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, "x", got.Annotations[0].Comment)
}

func TestSessionService_Get_EmptyAnnotationsNotNil(t *testing.T) {
	svc, _ := newSessionService(t)
	ctx := context.Background()

	session, _, err := svc.GetOrCreate(ctx, CreateSessionRequest{URL: "http://localhost:3000/"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Annotations, "annotations serialize as [], never null")
	assert.Empty(t, got.Annotations)
}

func TestSessionService_Get_NotFound(t *testing.T) {
	svc, _ := newSessionService(t)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_List_RejectsInvalidStatus(t *testing.T) {
	svc, _ := newSessionService(t)

	bogus := models.SessionStatus("bogus")
	_, err := svc.List(context.Background(), &bogus, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSessionService_UpdateStatus_RejectsInvalidStatus(t *testing.T) {
	svc, _ := newSessionService(t)

	err := svc.UpdateStatus(context.Background(), "any", models.SessionStatus("bogus"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
