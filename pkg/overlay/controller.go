// Package overlay orchestrates user interaction with the annotation layer:
// touch capture, pending-tap state, popup lifecycle and marker coordination.
package overlay

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/resolver"
	"github.com/agentation/agentation-server/pkg/store"
	"github.com/agentation/agentation-server/pkg/tree"
)

// State is the controller's interaction state.
type State string

const (
	StateIdle       State = "idle"
	StateModeActive State = "mode-active"
	StatePendingTap State = "pending-tap"
	StateEditing    State = "editing"
)

// ClearStaggerStep is the fixed visual delay increment between marker
// removals during clear-all. The store mutation itself is atomic.
const ClearStaggerStep = 50 * time.Millisecond

// Capture is the optional animation-state capture plugin. Consumers must
// query capabilities defensively and never assume presence.
type Capture interface {
	SupportsPause() bool
	OnPauseChange(paused bool)
	Extras() map[string]any
}

// pendingTap is a captured coordinate awaiting resolver output.
type pendingTap struct {
	x, y float64
	det  *models.ComponentDetection
}

// Controller drives the annotation overlay state machine. All transitions
// happen on the caller's goroutine; the only asynchronous input is resolver
// delivery, which is matched against the pending coordinate so a superseding
// tap drops stale results.
type Controller struct {
	mu        sync.Mutex
	state     State
	pending   *pendingTap
	editingID string

	store   *store.Store
	res     *resolver.Resolver
	bus     *events.Bus
	capture Capture
	logger  *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus attaches the event bus mode/clear notifications publish to.
func WithBus(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithCapture attaches the optional capture plugin.
func WithCapture(capture Capture) Option {
	return func(c *Controller) { c.capture = capture }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Controller in the idle state.
func New(st *store.Store, res *resolver.Resolver, opts ...Option) *Controller {
	c := &Controller{
		state:  StateIdle,
		store:  st,
		res:    res,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current interaction state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PopupOpen reports whether the edit popup is showing (loading or editing).
func (c *Controller) PopupOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePendingTap || c.state == StateEditing
}

// EditingID returns the id of the existing annotation being edited, or "".
func (c *Controller) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

// EnableMode turns annotation capture on. Pauses animations when the capture
// plugin supports it.
func (c *Controller) EnableMode() {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateModeActive
	c.mu.Unlock()

	if c.capture != nil && c.capture.SupportsPause() {
		c.capture.OnPauseChange(true)
	}
	c.publish(events.TopicModeEnabled, nil)
}

// DisableMode turns annotation capture off, force-closing any open popup and
// discarding unsaved pending state.
func (c *Controller) DisableMode() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.editingID = ""
	c.state = StateIdle
	c.mu.Unlock()

	if c.capture != nil && c.capture.SupportsPause() {
		c.capture.OnPauseChange(false)
	}
	c.publish(events.TopicModeDisabled, nil)
}

// Tap captures a coordinate while annotation mode is active and no popup is
// open. The coordinate is captured synchronously; resolution fires
// asynchronously and the popup shows immediately in a loading state.
func (c *Controller) Tap(ctx context.Context, x, y float64, ref *tree.Node) bool {
	c.mu.Lock()
	if c.state != StateModeActive {
		c.mu.Unlock()
		return false
	}
	c.pending = &pendingTap{x: x, y: y}
	c.editingID = ""
	c.state = StatePendingTap
	c.mu.Unlock()

	go func() {
		det := c.res.Resolve(ctx, ref, x, y)
		c.deliverResolution(x, y, det)
	}()
	return true
}

// deliverResolution attaches a resolver result to the pending tap. A result
// whose coordinate no longer matches the pending tap is stale and dropped.
func (c *Controller) deliverResolution(x, y float64, det models.ComponentDetection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.x != x || c.pending.y != y {
		c.logger.Debug("dropping stale resolution result",
			zap.Float64("x", x), zap.Float64("y", y))
		return
	}
	c.pending.det = &det
	if c.state == StatePendingTap {
		c.state = StateEditing
	}
}

// SelectAnnotation opens the popup for an existing annotation.
func (c *Controller) SelectAnnotation(id string) bool {
	if c.store.GetByID(id) == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateModeActive {
		return false
	}
	c.pending = nil
	c.editingID = id
	c.state = StateEditing
	return true
}

// Save commits the comment. Empty or whitespace-only comments are rejected:
// the popup stays open and nothing mutates. For a new annotation the latest
// resolver result available now is used; if resolution has not completed the
// save is ignored. A detection that blocks creation (introspection
// unavailable) silently closes the popup without an annotation.
func (c *Controller) Save(comment string) *models.Annotation {
	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateEditing && c.state != StatePendingTap {
		c.mu.Unlock()
		return nil
	}

	if c.editingID != "" {
		id := c.editingID
		c.editingID = ""
		c.state = StateModeActive
		c.mu.Unlock()

		c.store.Update(id, trimmed)
		return c.store.GetByID(id)
	}

	if c.pending == nil || c.pending.det == nil {
		// Resolution still in flight: save is deferred, popup stays open.
		c.mu.Unlock()
		return nil
	}

	pending := *c.pending
	c.pending = nil
	c.state = StateModeActive
	c.mu.Unlock()

	a := c.store.CreateFromDetection(pending.x, pending.y, trimmed, *pending.det)
	if a == nil {
		c.logger.Debug("annotation creation skipped, detection unavailable")
	}
	return a
}

// Cancel discards the pending coordinate and resolution result with no store
// mutation.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateEditing && c.state != StatePendingTap {
		return
	}
	c.pending = nil
	c.editingID = ""
	c.state = StateModeActive
}

// Delete removes the annotation being edited. Only available when editing an
// existing annotation.
func (c *Controller) Delete() bool {
	c.mu.Lock()
	if c.state != StateEditing || c.editingID == "" {
		c.mu.Unlock()
		return false
	}
	id := c.editingID
	c.editingID = ""
	c.state = StateModeActive
	c.mu.Unlock()

	return c.store.Delete(id)
}

// ClearAll captures the pre-clear snapshot for the clear notification, then
// empties the store atomically. The returned schedule staggers the visual
// removal of markers in reverse creation order.
func (c *Controller) ClearAll() []MarkerRemoval {
	snapshot := c.store.Snapshot()
	if len(snapshot) == 0 {
		c.store.ClearAll()
		return nil
	}

	c.publish(events.TopicAnnotationsClear, snapshot)
	c.store.ClearAll()

	schedule := make([]MarkerRemoval, len(snapshot))
	for i, a := range snapshot {
		// Last created disappears first.
		step := len(snapshot) - 1 - i
		schedule[i] = MarkerRemoval{
			AnnotationID: a.ID,
			Delay:        time.Duration(step) * ClearStaggerStep,
		}
	}
	return schedule
}

// MarkerRemoval pairs an annotation marker with its visual removal delay.
type MarkerRemoval struct {
	AnnotationID string
	Delay        time.Duration
}

// Extras returns the capture plugin's extra state, or nil without a plugin.
func (c *Controller) Extras() map[string]any {
	if c.capture == nil {
		return nil
	}
	return c.capture.Extras()
}

func (c *Controller) publish(topic string, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(topic, "", payload); err != nil {
		c.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
