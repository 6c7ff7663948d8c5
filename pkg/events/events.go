// Package events defines the in-process event contract and the pub/sub bus
// carrying annotation lifecycle events, webhook fan-out and action broadcast.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Topics for annotation lifecycle and agent signalling.
const (
	TopicAnnotationCreated = "annotation.created"
	TopicAnnotationUpdated = "annotation.updated"
	TopicAnnotationDeleted = "annotation.deleted"
	TopicAnnotationsClear  = "annotations.clear"
	TopicMarkdownCopied    = "markdown.copied"
	TopicActionRequested   = "action.requested"
	TopicModeEnabled       = "mode.enabled"
	TopicModeDisabled      = "mode.disabled"
)

// ActionTopic returns the per-session broadcast topic for send-to-agent
// actions.
func ActionTopic(sessionID string) string {
	return "actions." + sessionID
}

// Event is the envelope published on every topic.
type Event struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"sessionId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// DecodePayload unmarshals the event payload into v.
func (e *Event) DecodePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Bus is a thin wrapper over an in-process watermill Pub/Sub. Publishing is
// best-effort: with no subscriber on a topic the event is dropped.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// NewBus creates an in-process event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		logger: logger,
	}
}

// Publish marshals payload into an Event envelope and publishes it on topic.
func (b *Bus) Publish(topic string, sessionID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	evt := Event{
		Type:       topic,
		SessionID:  sessionID,
		Payload:    raw,
		OccurredAt: time.Now(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// Subscribe returns a channel of events for the topic. The subscription ends
// when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var evt Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				b.logger.Warn("dropping malformed event", zap.String("topic", topic), zap.Error(err))
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and terminates all subscriptions.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
