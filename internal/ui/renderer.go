package ui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/reconcile"
	"github.com/dori/weekplan/internal/ui/views"
)

// Sender is the part of *tea.Program the renderer needs
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer forwards controller output into the bubbletea program.
// Output sent before Attach is kept and delivered on Attach.
type ProgramRenderer struct {
	mu      sync.Mutex
	sender  Sender
	pending []tea.Msg
}

var _ reconcile.Renderer = (*ProgramRenderer)(nil)

// NewProgramRenderer creates a detached renderer
func NewProgramRenderer() *ProgramRenderer {
	return &ProgramRenderer{}
}

// Attach starts delivering to s
func (r *ProgramRenderer) Attach(s Sender) {
	r.mu.Lock()
	r.sender = s
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, msg := range pending {
		s.Send(msg)
	}
}

func (r *ProgramRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	s := r.sender
	if s == nil {
		r.pending = append(r.pending, msg)
	}
	r.mu.Unlock()

	if s != nil {
		s.Send(msg)
	}
}

// Render shows the tasks of the week starting at weekStart
func (r *ProgramRenderer) Render(weekStart time.Time, tasks []model.Task) {
	r.send(views.WeekRenderMsg{WeekStart: weekStart, Tasks: tasks})
}

// UpdateWeekLabel changes the header range
func (r *ProgramRenderer) UpdateWeekLabel(weekStart time.Time) {
	r.send(weekLabelMsg{WeekStart: weekStart})
}

// ShowSignIn switches to the sign-in form
func (r *ProgramRenderer) ShowSignIn() {
	r.send(showSignInMsg{})
}

// ShowError shows msg, with a retry hint when retryable
func (r *ProgramRenderer) ShowError(msg string, retryable bool) {
	r.send(showErrorMsg{Message: msg, Retryable: retryable})
}

// ShowStatus shows a transient status line; empty clears it
func (r *ProgramRenderer) ShowStatus(msg string) {
	r.send(StatusMsg{Message: msg})
}
