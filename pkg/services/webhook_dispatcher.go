package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/logging"
	"github.com/agentation/agentation-server/pkg/retry"
)

// webhookTimeout bounds one delivery attempt per destination.
const webhookTimeout = 10 * time.Second

// webhookTopics are the bus topics mirrored to webhook destinations.
var webhookTopics = []string{
	events.TopicAnnotationCreated,
	events.TopicAnnotationUpdated,
	events.TopicAnnotationDeleted,
	events.TopicActionRequested,
}

// WebhookDispatcher mirrors annotation lifecycle events to configured HTTP
// destinations. Delivery is best-effort: each destination is attempted
// independently and failures are logged per destination, never propagated.
type WebhookDispatcher struct {
	bus      *events.Bus
	urls     []string
	client   *http.Client
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewWebhookDispatcher creates a dispatcher for the given destinations.
func NewWebhookDispatcher(bus *events.Bus, urls []string, logger *zap.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		bus:      bus,
		urls:     urls,
		client:   &http.Client{Timeout: webhookTimeout},
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

// Start subscribes to the lifecycle topics and dispatches until ctx is
// cancelled. With no destinations configured it does nothing.
func (d *WebhookDispatcher) Start(ctx context.Context) error {
	if len(d.urls) == 0 {
		return nil
	}

	for _, topic := range webhookTopics {
		evts, err := d.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go func() {
			for evt := range evts {
				d.dispatch(ctx, evt)
			}
		}()
	}
	return nil
}

// dispatch posts the event to every destination. One failing destination
// does not cancel the others.
func (d *WebhookDispatcher) dispatch(ctx context.Context, evt events.Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		d.logger.Warn("failed to encode webhook payload", zap.Error(err))
		return
	}

	for _, url := range d.urls {
		err := retry.DoIfRetryable(ctx, d.retryCfg, func() error {
			return d.post(ctx, url, body)
		})
		if err != nil {
			d.logger.Warn("webhook delivery failed",
				zap.String("url", logging.SanitizeURL(url)),
				zap.String("event", evt.Type),
				zap.String("error", logging.SanitizeError(err)))
		}
	}
}

func (d *WebhookDispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
