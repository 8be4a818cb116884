package views

// InputSession is one opening of the add-task input. Enter, tab, moving to
// another day and terminal blur can all fire for the same text; only the
// first commit counts.
type InputSession struct {
	Day string

	committed bool
	cancelled bool
}

// NewInputSession opens a session that adds to day
func NewInputSession(day string) *InputSession {
	return &InputSession{Day: day}
}

// TryCommitOnce returns true exactly once, unless the session was cancelled
func (s *InputSession) TryCommitOnce() bool {
	if s == nil || s.committed || s.cancelled {
		return false
	}
	s.committed = true
	return true
}

// Cancel discards the session; later commits are ignored
func (s *InputSession) Cancel() {
	if s != nil {
		s.cancelled = true
	}
}

// Closed reports whether the session has committed or been cancelled
func (s *InputSession) Closed() bool {
	return s == nil || s.committed || s.cancelled
}
