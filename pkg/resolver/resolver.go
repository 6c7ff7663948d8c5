// Package resolver maps a tap coordinate to the originating source-component
// identity via runtime introspection of the rendered tree.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/tree"
)

// DefaultTimeout bounds the host-runtime introspection query.
const DefaultTimeout = 3000 * time.Millisecond

// maxLeafTextLength caps text content captured from leaf text nodes.
const maxLeafTextLength = 100

// PlaceholderName is the synthetic component name used when every source
// attribution tier fails.
const PlaceholderName = "UnknownComponent"

// Resolver resolves tap coordinates to component detections. It holds no
// state across calls; the inspector is the injected boundary to the host
// runtime.
type Resolver struct {
	inspector tree.Inspector
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout overrides the introspection query timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger attaches a logger. Pass nil to disable logging.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver around the given inspector.
func New(inspector tree.Inspector, opts ...Option) *Resolver {
	r := &Resolver{
		inspector: inspector,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// request carries everything one resolution attempt needs between tiers.
type request struct {
	hierarchy *tree.Hierarchy
	ref       *tree.Node
	tapNode   *tree.Node
	x, y      float64
}

// strategy is one fallback tier. It returns nil to pass the request to the
// next tier.
type strategy func(*request) *models.ComponentDetection

// Resolve determines the source-component identity for the tap at (x, y).
// ref is the caller's reference into the rendered tree, used by the direct
// fallback tiers. Resolve never returns an error: every failure short of a
// missing introspection hook degrades to a lower tier, ultimately to a
// placeholder detection.
func (r *Resolver) Resolve(ctx context.Context, ref *tree.Node, x, y float64) models.ComponentDetection {
	if r.inspector == nil {
		return models.ComponentDetection{Success: false}
	}

	hierarchy, err := r.queryHierarchy(ctx, x, y)
	if errors.Is(err, tree.ErrUnavailable) {
		return models.ComponentDetection{Success: false}
	}
	if err != nil {
		// Timeout or runtime error: the synchronous tiers still run.
		r.logger.Debug("hierarchy query failed, falling back", zap.Error(err))
	}

	req := &request{
		hierarchy: hierarchy,
		ref:       ref,
		x:         x,
		y:         y,
	}
	req.tapNode = r.tapNode(req)

	for _, tier := range []strategy{
		r.fromHierarchySourceTags,
		r.fromOutwardWalk,
		r.fromDirectNodeWalk,
		r.placeholder,
	} {
		if det := tier(req); det != nil {
			return *det
		}
	}

	// The placeholder tier always produces a result; this is unreachable.
	return models.ComponentDetection{Success: false}
}

// queryHierarchy races the inspector's asynchronous hierarchy query against
// the configured timeout. A timeout resolves to a nil hierarchy rather than
// an error the caller must handle.
func (r *Resolver) queryHierarchy(ctx context.Context, x, y float64) (*tree.Hierarchy, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		hierarchy *tree.Hierarchy
		err       error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := r.inspector.HierarchyAt(ctx, x, y)
		ch <- result{hierarchy: h, err: err}
	}()

	select {
	case res := <-ch:
		return res.hierarchy, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tapNode picks the most specific node available for the tap point.
func (r *Resolver) tapNode(req *request) *tree.Node {
	if sel := req.hierarchy.Selected(); sel != nil && sel.Node != nil {
		return sel.Node
	}
	if node := r.inspector.NodeAt(req.x, req.y); node != nil {
		return node
	}
	return req.ref
}

// fromHierarchySourceTags is tier 1: the shallowest hierarchy node carrying a
// caller-source tag wins, reading from the tree root down to the tap point.
// Nodes whose source lives inside the annotation library are skipped.
func (r *Resolver) fromHierarchySourceTags(req *request) *models.ComponentDetection {
	if req.hierarchy == nil {
		return nil
	}

	for _, entry := range req.hierarchy.Entries {
		if entry.Node == nil || entry.Node.Source == nil {
			continue
		}
		if tree.IsLibrarySource(entry.Node.Source) {
			continue
		}

		det := r.newDetection(req, entry.Node.Source, entry.Name)
		det.Bounds = boundsOf(entry.Bounds, entry.Node)
		return det
	}
	return nil
}

// fromOutwardWalk is tier 2: walk each node's own introspectable data from
// the tap point outward toward the root, merging context along the way, and
// succeed on the first valid caller source.
func (r *Resolver) fromOutwardWalk(req *request) *models.ComponentDetection {
	walk := collectOutward(req.tapNode)
	if walk.source == nil {
		return nil
	}

	det := r.newDetection(req, walk.source, walk.sourceName)
	mergeWalkContext(det, walk)
	det.Bounds = boundsOf(nil, req.tapNode)
	return det
}

// fromDirectNodeWalk is tier 3: direct introspection on the tapped instance.
// Nearest ancestor with inline debug source wins; failing that, the nearest
// ancestor with a user-defined component name, with source attribution marked
// unavailable.
func (r *Resolver) fromDirectNodeWalk(req *request) *models.ComponentDetection {
	start := req.ref
	if start == nil {
		start = req.tapNode
	}
	if start == nil {
		return nil
	}

	for node := start; node != nil; node = node.Parent {
		if node.Source != nil && !tree.IsLibrarySource(node.Source) {
			det := r.newDetection(req, node.Source, node.Name)
			det.Bounds = boundsOf(nil, node)
			return det
		}
	}

	for node := start; node != nil; node = node.Parent {
		if tree.IsUserComponentName(node.Name) {
			det := r.newDetection(req, nil, node.Name)
			det.SourceUnavailable = true
			det.Bounds = boundsOf(nil, node)
			return det
		}
	}
	return nil
}

// placeholder is tier 4: a minimal success result with a synthetic name and
// whatever bounds could be measured. SourceUnavailable tells the caller that
// source attribution failed; annotation creation still proceeds.
func (r *Resolver) placeholder(req *request) *models.ComponentDetection {
	det := r.newDetection(req, nil, PlaceholderName)
	det.SourceUnavailable = true
	if sel := req.hierarchy.Selected(); sel != nil {
		det.Bounds = boundsOf(sel.Bounds, sel.Node)
	} else {
		det.Bounds = boundsOf(nil, req.tapNode)
	}
	return det
}

// newDetection assembles a successful detection with the hierarchy-derived
// fields shared by every tier.
func (r *Resolver) newDetection(req *request, src *tree.Source, componentName string) *models.ComponentDetection {
	det := &models.ComponentDetection{Success: true}

	if componentName == "" {
		componentName = PlaceholderName
	}
	if src != nil {
		det.CodeInfo = &models.CodeInfo{
			RelativePath:  src.File,
			LineNumber:    src.LineNumber,
			ColumnNumber:  src.ColumnNumber,
			ComponentName: componentName,
		}
	} else {
		det.CodeInfo = &models.CodeInfo{ComponentName: componentName}
	}

	applyHierarchyContext(det, req.hierarchy)
	return det
}

// applyHierarchyContext derives parentComponents, fullPath and nearbyElements
// from the filtered hierarchy names.
func applyHierarchyContext(det *models.ComponentDetection, hierarchy *tree.Hierarchy) {
	if hierarchy == nil || len(hierarchy.Entries) == 0 {
		return
	}

	names := make([]string, 0, len(hierarchy.Entries))
	for _, entry := range hierarchy.Entries {
		names = append(names, entry.Name)
	}
	filtered := tree.FilterComponentNames(names)
	if len(filtered) == 0 {
		return
	}

	// Parents are everything above the tapped entry. Drop the deepest raw
	// entry before filtering: when the tap lands on a native wrapper, the
	// user component it wraps still belongs to the parent chain's tail.
	det.ParentComponents = tree.FilterComponentNames(names[:len(names)-1])
	det.FullPath = strings.Join(filtered, " > ")

	nearby := filtered
	if len(nearby) > 3 {
		nearby = nearby[len(nearby)-3:]
	}
	det.NearbyElements = strings.Join(nearby, ", ")
}

// walkContext accumulates per-node data gathered on the outward walk.
type walkContext struct {
	accessibility tree.Accessibility
	testID        string
	text          string
	isFixed       bool
	source        *tree.Source
	sourceName    string
}

// collectOutward walks from node toward the root, applying first-wins rules
// for accessibility, testID and leaf text, any-wins for fixed positioning,
// and the library-source exclusion for caller sources.
func collectOutward(node *tree.Node) walkContext {
	var walk walkContext
	for n := node; n != nil; n = n.Parent {
		if walk.accessibility.IsEmpty() && !n.Accessibility.IsEmpty() {
			walk.accessibility = n.Accessibility
		}
		if walk.testID == "" && n.TestID != "" {
			walk.testID = n.TestID
		}
		if n.IsFixed {
			walk.isFixed = true
		}
		if walk.text == "" && len(n.Children) == 0 && n.Text != "" {
			walk.text = truncate(n.Text, maxLeafTextLength)
		}
		if walk.source == nil && n.Source != nil && !tree.IsLibrarySource(n.Source) {
			walk.source = n.Source
			walk.sourceName = n.Name
		}
	}
	return walk
}

// mergeWalkContext copies collected walk data onto the detection.
func mergeWalkContext(det *models.ComponentDetection, walk walkContext) {
	det.Accessibility = formatAccessibility(walk.accessibility)
	det.TestID = walk.testID
	det.NearbyText = walk.text
	det.IsFixed = walk.isFixed
}

// formatAccessibility serializes role/label/hint into one display string.
func formatAccessibility(a tree.Accessibility) string {
	var parts []string
	if a.Role != "" {
		parts = append(parts, "role="+a.Role)
	}
	if a.Label != "" {
		parts = append(parts, "label="+a.Label)
	}
	if a.Hint != "" {
		parts = append(parts, "hint="+a.Hint)
	}
	return strings.Join(parts, " ")
}

// boundsOf prefers the hierarchy-computed bounds, falling back to the node's
// own measured bounds.
func boundsOf(computed *tree.Rect, node *tree.Node) *models.BoundingBox {
	rect := computed
	if rect == nil && node != nil {
		rect = node.Bounds
	}
	if rect == nil {
		return nil
	}
	return &models.BoundingBox{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}
}

// truncate shortens s to max runes, appending an ellipsis when trimmed.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
