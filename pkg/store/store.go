// Package store owns the in-memory annotation collection for one screen
// scope: create/update/delete/clear with durable persistence as a side
// effect, and Markdown export via the report generator.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/events"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/report"
	"github.com/agentation/agentation-server/pkg/resolver"
	"github.com/agentation/agentation-server/pkg/storage"
	"github.com/agentation/agentation-server/pkg/tree"
)

// Clipboard writes text to the system clipboard. Implementations are thin
// platform bindings; tests inject fakes.
type Clipboard interface {
	Write(text string) error
}

// Environment is the snapshot of route/platform state captured onto each
// annotation at creation time.
type Environment struct {
	RouteName        string
	RouteParams      map[string]any
	NavigationPath   string
	Platform         string
	ScreenDimensions *models.ScreenDimensions
	PixelRatio       float64
}

// EnvironmentFunc supplies the current environment snapshot. Injected rather
// than read from a global navigation registry.
type EnvironmentFunc func() Environment

// Store is the annotation collection for one screen scope. Mutations are
// synchronous against in-memory state; durable persistence is fire-and-forget.
type Store struct {
	mu          sync.Mutex
	annotations []models.Annotation

	resolver  *resolver.Resolver
	screen    string
	persist   storage.Store
	bus       *events.Bus
	clipboard Clipboard
	copyText  bool
	env       EnvironmentFunc
	logger    *zap.Logger

	// persistMu guards the single-flight writer state below, never the
	// collection itself.
	persistMu    sync.Mutex
	pendingWrite []byte
	writerActive bool
}

// Option configures a Store.
type Option func(*Store)

// WithStorage attaches the durable key-value scope collections persist into.
func WithStorage(s storage.Store) Option {
	return func(st *Store) { st.persist = s }
}

// WithBus attaches the event bus lifecycle events publish to.
func WithBus(bus *events.Bus) Option {
	return func(st *Store) { st.bus = bus }
}

// WithClipboard attaches a clipboard; copyToClipboard controls whether
// CopyMarkdown writes to it.
func WithClipboard(c Clipboard, copyToClipboard bool) Option {
	return func(st *Store) {
		st.clipboard = c
		st.copyText = copyToClipboard
	}
}

// WithEnvironment injects the environment snapshot provider.
func WithEnvironment(fn EnvironmentFunc) Option {
	return func(st *Store) { st.env = fn }
}

// WithInitial seeds the collection. A non-empty persisted collection loaded
// at construction replaces the seed.
func WithInitial(annotations []models.Annotation) Option {
	return func(st *Store) {
		st.annotations = append([]models.Annotation(nil), annotations...)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(st *Store) {
		if logger != nil {
			st.logger = logger
		}
	}
}

// New creates a Store for the given screen scope. If durable storage holds a
// previously persisted non-empty collection for the scope, it replaces any
// caller-supplied initial collection; load failures log and degrade to the
// in-memory state.
func New(res *resolver.Resolver, screen string, opts ...Option) *Store {
	st := &Store{
		resolver: res,
		screen:   screen,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(st)
	}

	if st.persist != nil {
		if loaded, ok := st.load(); ok && len(loaded) > 0 {
			st.annotations = loaded
		}
	}
	return st
}

// Screen returns the screen scope label.
func (st *Store) Screen() string { return st.screen }

// Create resolves the tap and appends a new annotation. It returns nil when
// resolution reports success:false or produces no code info; in that case
// nothing is mutated and no event fires. This is the one recoverable failure
// path exposed to the caller.
func (st *Store) Create(ctx context.Context, x, y float64, ref *tree.Node, comment string) *models.Annotation {
	det := st.resolver.Resolve(ctx, ref, x, y)
	return st.CreateFromDetection(x, y, comment, det)
}

// CreateFromDetection appends an annotation built from an already-resolved
// detection. The overlay controller uses this with the latest resolver result
// available at save time instead of resolving twice. The same gate applies:
// success:false or missing code info returns nil with no mutation.
func (st *Store) CreateFromDetection(x, y float64, comment string, det models.ComponentDetection) *models.Annotation {
	if !det.Success || det.CodeInfo == nil {
		return nil
	}

	a := st.assemble(x, y, comment, det)

	st.mu.Lock()
	st.annotations = append(st.annotations, a)
	st.mu.Unlock()

	st.publish(events.TopicAnnotationCreated, a)
	st.schedulePersist()
	return &a
}

// assemble builds the annotation entity from the detection and the
// environment snapshot.
func (st *Store) assemble(x, y float64, comment string, det models.ComponentDetection) models.Annotation {
	a := models.Annotation{
		ID:        uuid.NewString(),
		X:         x,
		Y:         y,
		Comment:   comment,
		Timestamp: time.Now(),

		Element:          det.CodeInfo.ComponentName,
		ComponentType:    det.ComponentType,
		ParentComponents: det.ParentComponents,
		FullPath:         det.FullPath,
		NearbyElements:   det.NearbyElements,
		NearbyText:       det.NearbyText,
		Accessibility:    det.Accessibility,
		TestID:           det.TestID,
		IsFixed:          det.IsFixed,
	}

	if det.CodeInfo.RelativePath != "" {
		a.SourcePath = det.CodeInfo.RelativePath
		a.LineNumber = det.CodeInfo.LineNumber
		a.ColumnNumber = det.CodeInfo.ColumnNumber
		a.ElementPath = models.FormatElementPath(det.CodeInfo.RelativePath, det.CodeInfo.LineNumber)
	}
	if det.Bounds != nil {
		bounds := *det.Bounds
		a.BoundingBox = &bounds
	}

	if st.env != nil {
		env := st.env()
		a.RouteName = env.RouteName
		a.RouteParams = env.RouteParams
		a.NavigationPath = env.NavigationPath
		a.Platform = env.Platform
		a.ScreenDimensions = env.ScreenDimensions
		a.PixelRatio = env.PixelRatio
	}
	return a
}

// Update replaces the comment and refreshes the timestamp of the matching
// annotation. Unknown ids are a no-op. The updated event carries the previous
// snapshot merged with the new comment. Emptiness is not enforced here; that
// contract lives at the controller boundary.
func (st *Store) Update(id, comment string) {
	st.mu.Lock()
	var merged *models.Annotation
	for i := range st.annotations {
		if st.annotations[i].ID == id {
			prev := st.annotations[i]
			st.annotations[i].Comment = comment
			st.annotations[i].Timestamp = time.Now()

			m := prev
			m.Comment = comment
			merged = &m
			break
		}
	}
	st.mu.Unlock()

	if merged == nil {
		return
	}
	st.publish(events.TopicAnnotationUpdated, *merged)
	st.schedulePersist()
}

// Delete removes the annotation and publishes the removed entity. It reports
// whether anything was removed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	var removed *models.Annotation
	for i := range st.annotations {
		if st.annotations[i].ID == id {
			a := st.annotations[i]
			removed = &a
			st.annotations = append(st.annotations[:i], st.annotations[i+1:]...)
			break
		}
	}
	st.mu.Unlock()

	if removed == nil {
		return false
	}
	st.publish(events.TopicAnnotationDeleted, *removed)
	st.schedulePersist()
	return true
}

// ClearAll empties the collection. No per-item events fire; the controller
// captures the pre-clear snapshot and notifies.
func (st *Store) ClearAll() {
	st.mu.Lock()
	st.annotations = nil
	st.mu.Unlock()
	st.schedulePersist()
}

// GetByID returns a copy of the matching annotation, or nil.
func (st *Store) GetByID(id string) *models.Annotation {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := range st.annotations {
		if st.annotations[i].ID == id {
			a := st.annotations[i]
			return &a
		}
	}
	return nil
}

// Snapshot returns a copy of the collection in insertion order.
func (st *Store) Snapshot() []models.Annotation {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]models.Annotation(nil), st.annotations...)
}

// Len returns the collection size.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.annotations)
}

// CopyMarkdown renders the current collection at the given detail level,
// optionally writes the result to the system clipboard, and publishes a
// markdown.copied event.
func (st *Store) CopyMarkdown(level models.DetailLevel) report.Report {
	rep := report.Generate(st.Snapshot(), st.screen, level)

	if st.clipboard != nil && st.copyText {
		if err := st.clipboard.Write(rep.Content); err != nil {
			st.logger.Warn("clipboard write failed", zap.Error(err))
		}
	}

	st.publish(events.TopicMarkdownCopied, map[string]any{
		"count": rep.Count,
		"level": level,
	})
	return rep
}

// persistKey is the per-screen durable storage key.
func (st *Store) persistKey() string {
	return "annotations." + st.screen
}

// load reads a previously persisted collection. Failures log and report
// not-loaded; they never surface to the caller.
func (st *Store) load() ([]models.Annotation, bool) {
	data, err := st.persist.Load(context.Background(), st.persistKey())
	if err != nil {
		st.logger.Warn("failed to load persisted annotations", zap.Error(err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var annotations []models.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		st.logger.Warn("failed to decode persisted annotations", zap.Error(err))
		return nil, false
	}
	return annotations, true
}

// schedulePersist serializes the collection synchronously and hands it to a
// single-flight writer, so writes from rapid mutations cannot land out of
// order: the newest snapshot always wins. A crash between mutation and write
// can still lose the most recent change; that window is accepted, not masked
// by retries.
func (st *Store) schedulePersist() {
	if st.persist == nil {
		return
	}

	// Snapshot and enqueue atomically: the last caller through here leaves
	// the freshest state as the pending write.
	st.persistMu.Lock()
	data, err := json.Marshal(st.Snapshot())
	if err != nil {
		st.persistMu.Unlock()
		st.logger.Warn("failed to encode annotations for persistence", zap.Error(err))
		return
	}
	st.pendingWrite = data
	if st.writerActive {
		st.persistMu.Unlock()
		return
	}
	st.writerActive = true
	st.persistMu.Unlock()

	key := st.persistKey()
	go func() {
		for {
			st.persistMu.Lock()
			next := st.pendingWrite
			st.pendingWrite = nil
			if next == nil {
				st.writerActive = false
				st.persistMu.Unlock()
				return
			}
			st.persistMu.Unlock()

			if err := st.persist.Save(context.Background(), key, next); err != nil {
				st.logger.Warn("failed to persist annotations", zap.Error(err))
			}
		}
	}()
}

// publish sends a lifecycle event when a bus is attached.
func (st *Store) publish(topic string, payload any) {
	if st.bus == nil {
		return
	}
	if err := st.bus.Publish(topic, "", payload); err != nil {
		st.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
