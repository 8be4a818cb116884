package ui

import (
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/dori/weekplan/internal/ui/views"
)

type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func TestRendererBuffersUntilAttached(t *testing.T) {
	r := NewProgramRenderer()
	r.ShowStatus("Loading your week…")
	r.UpdateWeekLabel(monday)

	s := &sink{}
	r.Attach(s)
	r.Render(monday, nil)
	r.ShowSignIn()
	r.ShowError("nope", true)

	assert.Equal(t, []tea.Msg{
		StatusMsg{Message: "Loading your week…"},
		weekLabelMsg{WeekStart: monday},
		views.WeekRenderMsg{WeekStart: monday},
		showSignInMsg{},
		showErrorMsg{Message: "nope", Retryable: true},
	}, s.msgs)
}
