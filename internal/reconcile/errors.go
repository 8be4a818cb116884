package reconcile

import (
	"errors"
	"fmt"

	"github.com/dori/weekplan/internal/auth"
	"github.com/dori/weekplan/internal/carry"
	"github.com/dori/weekplan/internal/taskstore"
)

var errSubscriptionClosed = errors.New("subscription closed")

// Message turns an error into text for the user
func Message(err error) string {
	var partial *carry.PartialError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &partial):
		n := len(partial.Failed)
		return fmt.Sprintf("Couldn't move %d unfinished %s to today.", n, plural(n, "task", "tasks"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Wrong name or password."
	case IsSignedOut(err):
		return "You're signed out. Sign in to see your week."
	case errors.Is(err, taskstore.ErrNotFound):
		return "That task no longer exists."
	case errors.Is(err, taskstore.ErrTransient):
		return "Can't reach your tasks right now. Check the connection and try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}

// Retryable reports whether trying the same thing again may succeed
func Retryable(err error) bool {
	var partial *carry.PartialError
	if errors.As(err, &partial) {
		return true
	}
	if IsSignedOut(err) || errors.Is(err, auth.ErrInvalidCredentials) {
		return false
	}
	return true
}

// IsSignedOut reports errors caused by a missing identity
func IsSignedOut(err error) bool {
	return errors.Is(err, taskstore.ErrUnauthenticated) || errors.Is(err, auth.ErrNoSession)
}
