package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/services"
)

func TestAcknowledgeTool(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "misaligned")

	text, isError := f.callTool(t, "acknowledge", map[string]any{"annotation_id": annotation.ID})

	require.False(t, isError)
	var got models.Annotation
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, models.StatusAcknowledged, got.Status)
}

func TestAcknowledgeTool_NotFound(t *testing.T) {
	f := newToolFixture(t)

	text, isError := f.callTool(t, "acknowledge", map[string]any{"annotation_id": "missing"})

	assert.True(t, isError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &errResp))
	assert.Equal(t, "annotation_not_found", errResp.Code)
}

func TestResolveTool_WithMessage(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "wrong label")

	text, isError := f.callTool(t, "resolve", map[string]any{
		"annotation_id": annotation.ID,
		"message":       "Renamed the button",
	})

	require.False(t, isError)
	var got models.Annotation
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, "agent", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	require.Len(t, got.Thread, 1)
	assert.Equal(t, models.RoleAgent, got.Thread[0].Role)
	assert.Equal(t, "Renamed the button", got.Thread[0].Content)
}

func TestResolveTool_WithoutMessage(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "wrong label")

	text, isError := f.callTool(t, "resolve", map[string]any{"annotation_id": annotation.ID})

	require.False(t, isError)
	var got models.Annotation
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Empty(t, got.Thread)
}

func TestDismissTool(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "out of scope")

	text, isError := f.callTool(t, "dismiss", map[string]any{
		"annotation_id": annotation.ID,
		"reason":        "Intentional design",
	})

	require.False(t, isError)
	var got models.Annotation
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, models.StatusDismissed, got.Status)
	require.Len(t, got.Thread, 1)
	assert.Equal(t, "Intentional design", got.Thread[0].Content)
}

func TestDismissTool_ReasonRequired(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "out of scope")

	text, isError := f.callTool(t, "dismiss", map[string]any{"annotation_id": annotation.ID})

	assert.True(t, isError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &errResp))
	assert.Equal(t, "missing_parameter", errResp.Code)

	current, err := f.annotationService.Get(context.Background(), annotation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status, "a rejected dismiss leaves status untouched")
}

func TestReplyTool(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "needs context")

	_, isError := f.callTool(t, "reply", map[string]any{
		"annotation_id": annotation.ID,
		"message":       "Which breakpoint is this on?",
	})
	require.False(t, isError)

	text, isError := f.callTool(t, "reply", map[string]any{
		"annotation_id": annotation.ID,
		"message":       "Reproduced on mobile.",
	})
	require.False(t, isError)

	var got models.Annotation
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, models.StatusPending, got.Status, "reply does not change status")
	require.Len(t, got.Thread, 2)
	assert.Equal(t, "Which breakpoint is this on?", got.Thread[0].Content)
	assert.Equal(t, "Reproduced on mobile.", got.Thread[1].Content)
}

func TestReplyTool_MessageRequired(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "needs context")

	text, isError := f.callTool(t, "reply", map[string]any{"annotation_id": annotation.ID})

	assert.True(t, isError)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &errResp))
	assert.Equal(t, "missing_parameter", errResp.Code)
}

func TestWaitForActionTool_Timeout(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")

	text, isError := f.callTool(t, "wait_for_action", map[string]any{
		"session_id": session.ID,
		"timeoutMs":  50,
	})

	require.False(t, isError)
	var result services.WaitResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.True(t, result.Timeout)
	assert.Nil(t, result.Action)
}

func TestWaitForActionTool_ReceivesAction(t *testing.T) {
	f := newToolFixture(t)
	session := f.seedSession(t, "http://localhost:3000/")
	annotation := f.seedAnnotation(t, session.ID, "ship it")

	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = f.broker.Broadcast(session.ID, []models.Annotation{*annotation}, "# Page Feedback")
	}()

	text, isError := f.callTool(t, "wait_for_action", map[string]any{
		"session_id": session.ID,
		"timeoutMs":  2000,
	})

	require.False(t, isError)
	var result services.WaitResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.False(t, result.Timeout)
	require.NotNil(t, result.Action)
	assert.Equal(t, session.ID, result.Action.SessionID)
	assert.Equal(t, "# Page Feedback", result.Action.Output)
	require.Len(t, result.Action.Annotations, 1)
	assert.Equal(t, annotation.ID, result.Action.Annotations[0].ID)
}
