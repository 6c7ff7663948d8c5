package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrSessionClosed = errors.New("session is closed")
	ErrConflict      = errors.New("conflict")
)
