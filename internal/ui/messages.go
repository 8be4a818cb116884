package ui

import (
	"time"
)

// Mode is the screen the root model shows
type Mode int

const (
	ModeLoading Mode = iota
	ModeWeek
	ModeSignIn
	ModeError
)

// String returns the display name for a mode
func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "Loading"
	case ModeWeek:
		return "Week"
	case ModeSignIn:
		return "Sign in"
	case ModeError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Messages sent by ProgramRenderer on behalf of the controller

// weekLabelMsg updates the header range
type weekLabelMsg struct {
	WeekStart time.Time
}

// showSignInMsg replaces the screen with the sign-in form
type showSignInMsg struct{}

// showErrorMsg contains an error to display
type showErrorMsg struct {
	Message   string
	Retryable bool
}

// StatusMsg contains a status message to display
type StatusMsg struct {
	Message string
}

// themeSavedMsg reports persisting the theme choice
type themeSavedMsg struct {
	ThemeName string
	Err       error
}
