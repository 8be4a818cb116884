package ui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/config"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/reconcile"
	"github.com/dori/weekplan/internal/ui/theme"
	"github.com/dori/weekplan/internal/ui/views"
)

var (
	wednesday = time.Date(2024, time.June, 12, 9, 0, 0, 0, time.Local)
	monday    = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.Local)
)

type recordingController struct {
	sent []reconcile.Command
}

func (c *recordingController) Send(cmd reconcile.Command) bool {
	c.sent = append(c.sent, cmd)
	return true
}

type nopWriter struct{}

func (nopWriter) Create(context.Context, string, string) (model.Task, error) {
	return model.Task{}, nil
}

func (nopWriter) Toggle(context.Context, string, bool) error {
	return nil
}

func (nopWriter) SetNote(context.Context, string, string) error {
	return nil
}

func (nopWriter) Remove(context.Context, string) error {
	return nil
}

func newRoot(t *testing.T, opts ...Option) (RootModel, *recordingController) {
	t.Helper()
	ctl := &recordingController{}
	m := NewRootModel(ctl, nopWriter{}, calendar.FixedClock(wednesday), opts...)
	m = update(m, tea.WindowSizeMsg{Width: 160, Height: 40})
	return m, ctl
}

func update(m RootModel, msgs ...tea.Msg) RootModel {
	for _, msg := range msgs {
		mdl, _ := m.Update(msg)
		m = mdl.(RootModel)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStartsLoading(t *testing.T) {
	m, _ := newRoot(t)
	assert.Equal(t, ModeLoading, m.Mode())

	m = update(m, StatusMsg{Message: "Loading your week…"})
	assert.Contains(t, m.View(), "Loading your week…")
}

func TestRenderShowsWeek(t *testing.T) {
	m, _ := newRoot(t)
	m = update(m, views.WeekRenderMsg{WeekStart: monday, Tasks: []model.Task{
		{ID: "a", Text: "plan sprint", Date: "2024-06-12", OriginalDate: "2024-06-12"},
	}})

	assert.Equal(t, ModeWeek, m.Mode())
	out := m.View()
	assert.Contains(t, out, calendar.FormatWeekRange(monday))
	assert.Contains(t, out, "plan sprint")
}

func TestWeekKeysBecomeCommands(t *testing.T) {
	m, ctl := newRoot(t)
	m = update(m, views.WeekRenderMsg{WeekStart: monday})

	update(m, runes("]"), runes("["), runes("t"), runes("S"))

	assert.Equal(t, []reconcile.Command{
		reconcile.NavigateCmd{Delta: 1},
		reconcile.NavigateCmd{Delta: -1},
		reconcile.TodayCmd{},
		reconcile.SignOutCmd{},
	}, ctl.sent)
}

func TestInputModeKeepsKeysFromGlobals(t *testing.T) {
	m, ctl := newRoot(t)
	m = update(m, views.WeekRenderMsg{WeekStart: monday}, runes("a"))

	// q is typed into the input rather than quitting
	m = update(m, runes("q"), runes("]"))
	assert.Empty(t, ctl.sent)
	assert.True(t, m.isInputMode())
}

func TestRetryableErrorAndRetry(t *testing.T) {
	m, ctl := newRoot(t)
	m = update(m, showErrorMsg{Message: "Can't reach your tasks right now.", Retryable: true})

	assert.Equal(t, ModeError, m.Mode())
	assert.Contains(t, m.View(), "Can't reach your tasks right now.")

	// Unrelated keys keep the error up
	m = update(m, runes("x"))
	assert.Equal(t, ModeError, m.Mode())

	m = update(m, runes("r"))
	assert.Equal(t, ModeLoading, m.Mode())
	assert.Equal(t, []reconcile.Command{reconcile.RetryCmd{}}, ctl.sent)
}

func TestSignInFlow(t *testing.T) {
	m, ctl := newRoot(t)
	m = update(m, showErrorMsg{Message: "Wrong name or password."}, showSignInMsg{})

	assert.Equal(t, ModeSignIn, m.Mode())
	assert.Contains(t, m.View(), "Wrong name or password.")

	m = update(m, views.SignInSubmitMsg{Name: "alice", Password: "pw"})
	assert.Equal(t, []reconcile.Command{reconcile.SignInCmd{Name: "alice", Password: "pw"}}, ctl.sent)
	assert.Contains(t, m.View(), "Signing in…")
}

func TestWriteErrorShownAsMessage(t *testing.T) {
	m, _ := newRoot(t)
	m = update(m, views.WeekRenderMsg{WeekStart: monday})
	m = update(m, views.TaskWriteMsg{Op: "add", Err: errors.New("boom")})

	assert.Contains(t, m.View(), reconcile.Message(errors.New("boom")))
}

func TestHelpOverlay(t *testing.T) {
	m, ctl := newRoot(t)
	m = update(m, views.WeekRenderMsg{WeekStart: monday}, runes("?"))
	assert.Contains(t, m.View(), "weekplan help")

	// Keys do nothing while help is open
	m = update(m, runes("]"))
	assert.Empty(t, ctl.sent)

	m = update(m, runes("?"))
	assert.NotContains(t, m.View(), "weekplan help")
}

func TestThemeCycleSavesChoice(t *testing.T) {
	original := theme.Current.Theme
	t.Cleanup(func() { theme.SetTheme(original) })

	path := filepath.Join(t.TempDir(), "config.yaml")
	m, _ := newRoot(t, WithConfigPath(path))

	mdl, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = mdl.(RootModel)
	require.NotNil(t, cmd)
	next := theme.Current.Theme.Name
	assert.NotEqual(t, original.Name, next)

	saved, ok := cmd().(themeSavedMsg)
	require.True(t, ok)
	require.NoError(t, saved.Err)

	t.Setenv("WEEKPLAN_DATA_DIR", t.TempDir())
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, next, cfg.Theme)
}

func TestHeaderShowsIdentity(t *testing.T) {
	m, _ := newRoot(t, WithIdentity(func() *model.Identity {
		return &model.Identity{ID: "u1", Name: "alice"}
	}))
	assert.Contains(t, m.renderHeader(), "alice")
}
