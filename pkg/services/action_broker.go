package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
)

// DefaultActionWait is the default wait_for_action timeout.
const DefaultActionWait = 60 * time.Second

// Action is a send-to-agent signal broadcast for one session.
type Action struct {
	ActionID    string              `json:"actionId"`
	SessionID   string              `json:"sessionId"`
	Annotations []models.Annotation `json:"annotations"`
	Output      string              `json:"output"`
	RequestedAt time.Time           `json:"requestedAt"`
}

// WaitResult is the outcome of WaitForAction. Timeout is true when the wait
// expired before any action was emitted.
type WaitResult struct {
	Timeout bool    `json:"timeout,omitempty"`
	Action  *Action `json:"action,omitempty"`
}

// ActionBroker broadcasts send-to-agent actions to in-process listeners via
// the per-session action topic, and fans them out to webhooks via the shared
// action.requested topic.
type ActionBroker struct {
	bus    *events.Bus
	logger *zap.Logger
}

// NewActionBroker creates a new action broker.
func NewActionBroker(bus *events.Bus, logger *zap.Logger) *ActionBroker {
	return &ActionBroker{bus: bus, logger: logger}
}

// Broadcast emits an action for the session and returns its generated id.
// Delivery is best-effort: with no listener waiting the action is dropped.
func (b *ActionBroker) Broadcast(sessionID string, annotations []models.Annotation, output string) (string, error) {
	action := Action{
		ActionID:    uuid.NewString(),
		SessionID:   sessionID,
		Annotations: annotations,
		Output:      output,
		RequestedAt: time.Now().UTC(),
	}

	if err := b.bus.Publish(events.ActionTopic(sessionID), sessionID, action); err != nil {
		return "", err
	}
	// Webhook fan-out is independent of the in-process listener.
	if err := b.bus.Publish(events.TopicActionRequested, sessionID, action); err != nil {
		b.logger.Warn("failed to publish action.requested", zap.Error(err))
	}

	b.logger.Info("action broadcast",
		zap.String("session_id", sessionID),
		zap.String("action_id", action.ActionID),
		zap.Int("annotations", len(annotations)))
	return action.ActionID, nil
}

// WaitForAction blocks until an action is emitted for the session or the
// timeout elapses, whichever comes first. Expiry returns a timeout-marked
// result, not an error.
func (b *ActionBroker) WaitForAction(ctx context.Context, sessionID string, timeout time.Duration) (*WaitResult, error) {
	if timeout <= 0 {
		timeout = DefaultActionWait
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	evts, err := b.bus.Subscribe(ctx, events.ActionTopic(sessionID))
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case evt, ok := <-evts:
		if !ok {
			return &WaitResult{Timeout: true}, nil
		}
		var action Action
		if err := evt.DecodePayload(&action); err != nil {
			return nil, err
		}
		return &WaitResult{Action: &action}, nil
	case <-timer.C:
		return &WaitResult{Timeout: true}, nil
	case <-ctx.Done():
		return &WaitResult{Timeout: true}, nil
	}
}
