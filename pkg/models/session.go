package models

import "time"

// SessionStatus tracks the lifecycle of a feedback session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionApproved SessionStatus = "approved"
	SessionClosed   SessionStatus = "closed"
)

// IsValidSessionStatus reports whether s is a known session status.
func IsValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionActive, SessionApproved, SessionClosed:
		return true
	}
	return false
}

// Session groups annotations under one page/app URL context. One session has
// many annotations; deleting a session cascades to its annotations.
type Session struct {
	ID        string         `json:"id"`
	URL       string         `json:"url"`
	Status    SessionStatus  `json:"status"`
	ProjectID string         `json:"projectId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SessionWithAnnotations is the expanded session payload returned by
// GET /sessions/{id} and the get_session tool.
type SessionWithAnnotations struct {
	Session
	Annotations []Annotation `json:"annotations"`
}
