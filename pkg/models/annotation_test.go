package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatElementPath(t *testing.T) {
	assert.Equal(t, "src/components/Button.tsx:42", FormatElementPath("src/components/Button.tsx", 42))
	assert.Equal(t, "App.tsx:0", FormatElementPath("App.tsx", 0))
}

func TestAnnotation_IsPending(t *testing.T) {
	tests := []struct {
		name   string
		status AnnotationStatus
		want   bool
	}{
		{name: "unset status counts as pending", status: "", want: true},
		{name: "pending", status: StatusPending, want: true},
		{name: "acknowledged", status: StatusAcknowledged, want: false},
		{name: "resolved", status: StatusResolved, want: false},
		{name: "dismissed", status: StatusDismissed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Annotation{Status: tt.status}
			assert.Equal(t, tt.want, a.IsPending())
		})
	}
}

func TestIsValidAnnotationStatus(t *testing.T) {
	assert.True(t, IsValidAnnotationStatus(StatusPending))
	assert.True(t, IsValidAnnotationStatus(StatusDismissed))
	assert.False(t, IsValidAnnotationStatus(AnnotationStatus("archived")))
}

func TestIsValidSessionStatus(t *testing.T) {
	assert.True(t, IsValidSessionStatus(SessionActive))
	assert.True(t, IsValidSessionStatus(SessionApproved))
	assert.True(t, IsValidSessionStatus(SessionClosed))
	assert.False(t, IsValidSessionStatus(SessionStatus("paused")))
}
