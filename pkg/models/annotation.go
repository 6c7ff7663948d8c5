// Package models contains domain types for the agentation server and core.
package models

import (
	"fmt"
	"time"
)

// AnnotationStatus tracks the server-side lifecycle of a synced annotation.
type AnnotationStatus string

const (
	StatusPending      AnnotationStatus = "pending"
	StatusAcknowledged AnnotationStatus = "acknowledged"
	StatusResolved     AnnotationStatus = "resolved"
	StatusDismissed    AnnotationStatus = "dismissed"
)

// IsValidAnnotationStatus reports whether s is a known lifecycle status.
func IsValidAnnotationStatus(s AnnotationStatus) bool {
	switch s {
	case StatusPending, StatusAcknowledged, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// ThreadRole identifies the author of a thread message.
type ThreadRole string

const (
	RoleHuman ThreadRole = "human"
	RoleAgent ThreadRole = "agent"
)

// ThreadMessage is one entry in an annotation's conversation thread.
type ThreadMessage struct {
	ID        string     `json:"id"`
	Role      ThreadRole `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// BoundingBox is the measured rectangle of the annotated element, in
// viewport-relative pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScreenDimensions is the viewport size captured when the annotation was made.
type ScreenDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Annotation is a user-authored comment anchored to a specific on-screen
// element and coordinate. ID, X and Y are set once at creation and never
// recomputed; scroll offset is applied at render time only.
type Annotation struct {
	ID string `json:"id"`

	// Placement at creation time, viewport-relative.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Content
	Comment      string    `json:"comment"`
	SelectedText string    `json:"selectedText,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	// Target identity. ElementPath is "<relativePath>:<lineNumber>" and must
	// stay consistent with SourcePath+LineNumber when both are present.
	Element       string `json:"element"`
	ElementPath   string `json:"elementPath,omitempty"`
	SourcePath    string `json:"sourcePath,omitempty"`
	LineNumber    int    `json:"lineNumber,omitempty"`
	ColumnNumber  int    `json:"columnNumber,omitempty"`
	ComponentType string `json:"componentType,omitempty"`

	// Structural context, populated opportunistically by the resolver.
	ParentComponents []string     `json:"parentComponents,omitempty"` // root-first
	FullPath         string       `json:"fullPath,omitempty"`
	NearbyElements   string       `json:"nearbyElements,omitempty"`
	NearbyText       string       `json:"nearbyText,omitempty"`
	Accessibility    string       `json:"accessibility,omitempty"`
	TestID           string       `json:"testID,omitempty"`
	BoundingBox      *BoundingBox `json:"boundingBox,omitempty"`
	IsFixed          bool         `json:"isFixed,omitempty"`
	IsMultiSelect    bool         `json:"isMultiSelect,omitempty"`

	// Environment snapshot.
	RouteName        string            `json:"routeName,omitempty"`
	RouteParams      map[string]any    `json:"routeParams,omitempty"`
	NavigationPath   string            `json:"navigationPath,omitempty"`
	Platform         string            `json:"platform,omitempty"`
	ScreenDimensions *ScreenDimensions `json:"screenDimensions,omitempty"`
	PixelRatio       float64           `json:"pixelRatio,omitempty"`

	// Server-side lifecycle, only meaningful once synced.
	Status     AnnotationStatus `json:"status,omitempty"`
	Thread     []ThreadMessage  `json:"thread,omitempty"`
	ResolvedAt *time.Time       `json:"resolvedAt,omitempty"`
	ResolvedBy string           `json:"resolvedBy,omitempty"`
	SessionID  string           `json:"sessionId,omitempty"`
	URL        string           `json:"url,omitempty"`
}

// FormatElementPath builds the canonical "<relativePath>:<lineNumber>" form.
func FormatElementPath(relativePath string, lineNumber int) string {
	return fmt.Sprintf("%s:%d", relativePath, lineNumber)
}

// IsPending reports whether the annotation still awaits agent attention.
// An unset status counts as pending: local annotations gain a status only
// once the server has seen them.
func (a *Annotation) IsPending() bool {
	return a.Status == "" || a.Status == StatusPending
}
