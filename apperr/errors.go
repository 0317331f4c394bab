package apperr

import (
	"errors"
	"strings"
)

// Sentinel errors for the engine. Services wrap these with %w and context;
// the REST layer maps them to HTTP status codes.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")
	ErrDuplicateEdge  = errors.New("duplicate friend edge")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrTransientStore = errors.New("transient store error")
)

// UniqueViolation detects duplicate-key errors from common database drivers.
// The check-then-insert paths (friend edges, reactions) rely on this as the
// storage-layer fallback for concurrent writers.
func UniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "already exists")
}
