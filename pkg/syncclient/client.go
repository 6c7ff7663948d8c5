// Package syncclient mirrors a local annotation store to a companion
// annotation server. Every push is best-effort: failures are logged and never
// affect local state.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/report"
	"github.com/agentation/agentation-server/pkg/retry"
	"github.com/agentation/agentation-server/pkg/store"
)

// DefaultTimeout is the maximum time to wait for server responses.
const DefaultTimeout = 30 * time.Second

// Client pushes local annotations to the annotation server.
type Client struct {
	baseURL    string
	pageURL    string
	httpClient *http.Client
	retryCfg   *retry.Config
	store      *store.Store
	logger     *zap.Logger

	mu        sync.Mutex
	sessionID string
}

// NewClient creates a sync client for the store. baseURL is the annotation
// server root; pageURL identifies the session the mirrored annotations
// belong to.
func NewClient(baseURL, pageURL string, st *store.Store, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		pageURL: pageURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		retryCfg: retry.DefaultConfig(),
		store:    st,
		logger:   logger.Named("sync"),
	}
}

// Start subscribes to store lifecycle events and mirrors them until ctx is
// cancelled.
func (c *Client) Start(ctx context.Context, bus *events.Bus) error {
	topics := map[string]func(context.Context, events.Event){
		events.TopicAnnotationCreated: c.onCreated,
		events.TopicAnnotationUpdated: c.onUpdated,
		events.TopicAnnotationDeleted: c.onDeleted,
	}

	for topic, handle := range topics {
		evts, err := bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go func(handle func(context.Context, events.Event)) {
			for evt := range evts {
				handle(ctx, evt)
			}
		}(handle)
	}
	return nil
}

// SendToAgent pushes the current collection and a generated report to the
// server's action endpoint, signalling any waiting agent.
func (c *Client) SendToAgent(ctx context.Context, level models.DetailLevel) error {
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	annotations := c.store.Snapshot()
	rep := report.Generate(annotations, c.store.Screen(), level)

	payload := map[string]any{
		"annotations": annotations,
		"output":      rep.Content,
	}
	var result struct {
		Success  bool   `json:"success"`
		ActionID string `json:"actionId"`
	}
	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/action", sessionID), payload, &result); err != nil {
		return err
	}

	c.logger.Info("sent annotations to agent",
		zap.String("session_id", sessionID),
		zap.String("action_id", result.ActionID),
		zap.Int("count", rep.Count))
	return nil
}

func (c *Client) onCreated(ctx context.Context, evt events.Event) {
	var a models.Annotation
	if err := evt.DecodePayload(&a); err != nil {
		c.logger.Warn("malformed created event", zap.Error(err))
		return
	}

	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		c.logger.Warn("failed to ensure session", zap.Error(err))
		return
	}

	if err := c.post(ctx, fmt.Sprintf("/sessions/%s/annotations", sessionID), a, nil); err != nil {
		c.logger.Warn("failed to push annotation", zap.String("annotation_id", a.ID), zap.Error(err))
	}
}

func (c *Client) onUpdated(ctx context.Context, evt events.Event) {
	var a models.Annotation
	if err := evt.DecodePayload(&a); err != nil {
		c.logger.Warn("malformed updated event", zap.Error(err))
		return
	}

	updates := map[string]any{"comment": a.Comment, "timestamp": a.Timestamp}
	if err := c.patch(ctx, "/annotations/"+a.ID, updates); err != nil {
		c.logger.Warn("failed to push annotation update", zap.String("annotation_id", a.ID), zap.Error(err))
	}
}

func (c *Client) onDeleted(ctx context.Context, evt events.Event) {
	var a models.Annotation
	if err := evt.DecodePayload(&a); err != nil {
		c.logger.Warn("malformed deleted event", zap.Error(err))
		return
	}

	if err := c.delete(ctx, "/annotations/"+a.ID); err != nil {
		c.logger.Warn("failed to push annotation delete", zap.String("annotation_id", a.ID), zap.Error(err))
	}
}

// ensureSession resolves (once) the server session for the page URL.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}

	var session models.Session
	err := c.post(ctx, "/sessions", map[string]any{"url": c.pageURL}, &session)
	if err != nil {
		return "", err
	}
	c.sessionID = session.ID
	return session.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) patch(ctx context.Context, path string, payload any) error {
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do runs one request with retries. Transient failures (a restarting server,
// a dropped connection) are retried with backoff; anything the server rejects
// outright is returned as-is.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		data = encoded
	}

	return retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		return c.attempt(ctx, method, path, data, out)
	})
}

func (c *Client) attempt(ctx context.Context, method, path string, data []byte, out any) error {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
