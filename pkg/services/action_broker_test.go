package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
)

func TestActionBroker_WaitForAction_ReceivesBroadcast(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	broker := NewActionBroker(bus, zap.NewNop())

	type waitOutcome struct {
		result *WaitResult
		err    error
	}
	done := make(chan waitOutcome, 1)
	go func() {
		result, err := broker.WaitForAction(context.Background(), "sess-1", 5*time.Second)
		done <- waitOutcome{result, err}
	}()

	// Give the waiter time to subscribe before broadcasting.
	time.Sleep(50 * time.Millisecond)

	annotations := []models.Annotation{{ID: "a-1", Comment: "broken"}}
	actionID, err := broker.Broadcast("sess-1", annotations, "# Page Feedback")
	require.NoError(t, err)
	require.NotEmpty(t, actionID)

	select {
	case outcome := <-done:
		require.NoError(t, outcome.err)
		require.NotNil(t, outcome.result.Action)
		assert.False(t, outcome.result.Timeout)
		assert.Equal(t, actionID, outcome.result.Action.ActionID)
		assert.Equal(t, "sess-1", outcome.result.Action.SessionID)
		require.Len(t, outcome.result.Action.Annotations, 1)
		assert.Equal(t, "a-1", outcome.result.Action.Annotations[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never received the action")
	}
}

func TestActionBroker_WaitForAction_TimesOut(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	broker := NewActionBroker(bus, zap.NewNop())

	result, err := broker.WaitForAction(context.Background(), "sess-1", 50*time.Millisecond)

	require.NoError(t, err, "expiry is a timeout result, not an error")
	assert.True(t, result.Timeout)
	assert.Nil(t, result.Action)
}

func TestActionBroker_WaitForAction_SessionsAreIsolated(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	broker := NewActionBroker(bus, zap.NewNop())

	done := make(chan *WaitResult, 1)
	go func() {
		result, _ := broker.WaitForAction(context.Background(), "sess-1", 200*time.Millisecond)
		done <- result
	}()
	time.Sleep(50 * time.Millisecond)

	_, err := broker.Broadcast("sess-2", nil, "")
	require.NoError(t, err)

	select {
	case result := <-done:
		assert.True(t, result.Timeout, "an action for another session must not be delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestActionBroker_Broadcast_WithoutListenerDoesNotBlock(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	broker := NewActionBroker(bus, zap.NewNop())

	actionID, err := broker.Broadcast("sess-1", nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, actionID)
}
