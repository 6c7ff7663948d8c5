// Package tree models the host UI runtime's rendered component tree as the
// resolver sees it. The runtime itself stays behind the Inspector interface;
// nothing in this package talks to a React renderer directly.
package tree

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable signals that the runtime's introspection hook is entirely
// absent (for example a production build). This is the only condition that
// yields a success:false detection.
var ErrUnavailable = errors.New("tree introspection unavailable")

// Source is the instrumentation-injected caller-source tag carried by nodes
// rendered from instrumented user code.
type Source struct {
	File         string `json:"file"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// Accessibility holds the accessibility metadata attached to a node.
type Accessibility struct {
	Label string `json:"label,omitempty"`
	Hint  string `json:"hint,omitempty"`
	Role  string `json:"role,omitempty"`
}

// IsEmpty reports whether no accessibility metadata is set.
func (a Accessibility) IsEmpty() bool {
	return a.Label == "" && a.Hint == "" && a.Role == ""
}

// Rect is a measured node rectangle in viewport-relative pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one rendered tree node. Parent links let the resolver walk outward
// from a tap point toward the root.
type Node struct {
	Name          string
	Source        *Source
	Bounds        *Rect
	Accessibility Accessibility
	TestID        string
	Text          string
	IsFixed       bool

	Parent   *Node
	Children []*Node
}

// HierarchyEntry is one ancestor returned by the runtime's hierarchy query,
// with its computed bounds.
type HierarchyEntry struct {
	Name   string
	Node   *Node
	Bounds *Rect
}

// Hierarchy is the full ancestor chain of the node under a tap coordinate,
// ordered root-first. SelectionIndex points at the entry the runtime considers
// selected (usually the deepest).
type Hierarchy struct {
	Entries        []HierarchyEntry
	SelectionIndex int
}

// Selected returns the entry at SelectionIndex, or nil when out of range.
func (h *Hierarchy) Selected() *HierarchyEntry {
	if h == nil || h.SelectionIndex < 0 || h.SelectionIndex >= len(h.Entries) {
		return nil
	}
	return &h.Entries[h.SelectionIndex]
}

// Inspector is the injected introspection boundary to the host runtime.
// HierarchyAt may block on an asynchronous runtime query; callers bound it
// with the context. NodeAt is the direct, synchronous tree lookup used by the
// fallback tiers.
type Inspector interface {
	HierarchyAt(ctx context.Context, x, y float64) (*Hierarchy, error)
	NodeAt(x, y float64) *Node
}

// libraryPathSegments identify source files belonging to the annotation
// library itself. A node whose source lives there must never be attributed to
// user code.
var libraryPathSegments = []string{
	"agentation",
	"node_modules/agentation",
}

// IsLibrarySource reports whether src points into the annotation library's own
// code rather than user code.
func IsLibrarySource(src *Source) bool {
	if src == nil {
		return false
	}
	for _, seg := range libraryPathSegments {
		if strings.Contains(src.File, seg) {
			return true
		}
	}
	return false
}

// internalNamePrefixes mark native wrapper and library-internal component
// names that are filtered out of reported hierarchies.
var internalNamePrefixes = []string{"RCT", "RN", "Anonymous", "_"}

// internalNames are exact wrapper names filtered out of reported hierarchies.
var internalNames = map[string]struct{}{
	"View":     {},
	"Fragment": {},
	"Provider": {},
	"Consumer": {},
	"Unknown":  {},
	"":         {},
}

// IsUserComponentName reports whether name looks like a user-defined component:
// non-empty, not anonymous, not underscore-prefixed, not a native wrapper.
func IsUserComponentName(name string) bool {
	if _, internal := internalNames[name]; internal {
		return false
	}
	for _, prefix := range internalNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

// FilterComponentNames drops internal and native wrapper names, preserving
// order.
func FilterComponentNames(names []string) []string {
	var filtered []string
	for _, name := range names {
		if IsUserComponentName(name) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}
