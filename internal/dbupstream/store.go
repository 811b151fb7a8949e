// Package dbupstream is the DB upstream behind the "session" element
// kind's field lookup and the "db"-kind fragments (favorite,
// subscription) a purge-by-session request enumerates. Two drivers
// back the same Store contract: Postgres for the "standard" deployment
// profile, embedded SQLite for "lite".
package dbupstream

import (
	"context"
	"errors"
	"fmt"
)

// Error is the typed DB-upstream error (Message/Code/Cause/Unwrap).
type Error struct {
	Message string
	Code    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dbupstream: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("dbupstream: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error with the given code and optional cause.
func NewError(code, message string, cause error) *Error {
	return &Error{Message: message, Code: code, Cause: cause}
}

var (
	ErrConnectionFailed = NewError("connection_failed", "could not reach database", nil)
	ErrNotFound         = NewError("not_found", "no matching row", nil)
)

// IsNotFound reports whether err (or a wrapped cause) is ErrNotFound.
func IsNotFound(err error) bool {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Code == "not_found"
	}
	return false
}

// Store is the parameterized single-statement query contract: single-
// statement transactions with parameterized session lookups, pool sized
// by config.
type Store interface {
	// GetSession returns the named fields of session sessionID (e.g.
	// "name", "admin"), or ok=false if no such session row exists.
	GetSession(ctx context.Context, sessionID string) (fields map[string]string, ok bool, err error)

	// GetFragment looks up a single db-kind fragment (table named by
	// kind: "favorite" -> favorites, "subscription" -> subscriptions).
	GetFragment(ctx context.Context, kind, id string) (value string, ok bool, err error)

	// Close releases pooled connections.
	Close() error
}
