package ui

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/config"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/reconcile"
	"github.com/dori/weekplan/internal/ui/theme"
	"github.com/dori/weekplan/internal/ui/views"
)

// Controller receives the user's intents. *reconcile.Controller satisfies it.
type Controller interface {
	Send(cmd reconcile.Command) bool
}

// Option configures a RootModel
type Option func(*RootModel)

// WithConfigPath persists theme changes to the config file at path
func WithConfigPath(path string) Option {
	return func(m *RootModel) { m.configPath = path }
}

// WithIdentity shows the signed-in name in the header
func WithIdentity(current func() *model.Identity) Option {
	return func(m *RootModel) { m.identity = current }
}

// RootModel is the main application model. It shows whatever screen the
// controller last asked for and forwards user intents back to it.
type RootModel struct {
	ctl    Controller
	keys   KeyMap
	help   help.Model
	width  int
	height int

	mode        Mode
	weekView    views.WeekView
	signInView  views.SignInView
	helpVisible bool
	weekStart   time.Time

	configPath string
	identity   func() *model.Identity

	// Status message
	statusMsg string
	errorMsg  string
	retryable bool
}

// NewRootModel creates a new root model
func NewRootModel(ctl Controller, store views.TaskWriter, clock calendar.Clock, opts ...Option) RootModel {
	h := help.New()
	h.ShowAll = false

	m := RootModel{
		ctl:        ctl,
		keys:       DefaultKeyMap(),
		help:       h,
		mode:       ModeLoading,
		weekView:   views.NewWeekView(store, clock),
		signInView: views.NewSignInView(),
		weekStart:  calendar.WeekStart(calendar.Today(clock)),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the model
func (m RootModel) Init() tea.Cmd {
	return m.weekView.Init()
}

// Mode returns the screen being shown
func (m RootModel) Mode() Mode {
	return m.mode
}

func (m RootModel) isInputMode() bool {
	switch m.mode {
	case ModeWeek:
		return m.weekView.IsInputMode()
	case ModeSignIn:
		return m.signInView.IsInputMode()
	}
	return false
}

// Update handles messages
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.weekView = m.weekView.SetSize(m.width, m.contentHeight())
		m.signInView = m.signInView.SetSize(m.width, m.contentHeight())
		return m, nil

	case tea.KeyMsg:
		var cmd tea.Cmd
		var handled bool
		if m, cmd, handled = m.handleKey(msg); handled {
			return m, cmd
		}

	case views.WeekRenderMsg:
		m.mode = ModeWeek
		m.weekStart = msg.WeekStart
		m.retryable = false

	case weekLabelMsg:
		m.weekStart = msg.WeekStart
		return m, nil

	case showSignInMsg:
		m.mode = ModeSignIn
		m.retryable = false
		m.statusMsg = ""
		m.signInView = views.NewSignInView().SetSize(m.width, m.contentHeight())
		return m, m.signInView.Init()

	case showErrorMsg:
		log.Printf("ui: error shown: %s (retryable=%t)", msg.Message, msg.Retryable)
		m.errorMsg = msg.Message
		m.retryable = msg.Retryable
		if msg.Retryable {
			m.mode = ModeError
		}
		return m, nil

	case StatusMsg:
		m.statusMsg = msg.Message
		return m, nil

	case views.SignInSubmitMsg:
		m.errorMsg = ""
		m.statusMsg = "Signing in…"
		m.ctl.Send(reconcile.SignInCmd{Name: msg.Name, Password: msg.Password})
		return m, nil

	case views.TaskWriteMsg:
		if msg.Err != nil {
			log.Printf("ui: %s failed: %v", msg.Op, msg.Err)
			m.errorMsg = reconcile.Message(msg.Err)
		}
		return m, nil

	case themeSavedMsg:
		if msg.Err != nil {
			log.Printf("ui: save theme: %v", msg.Err)
			m.errorMsg = "Couldn't save theme: " + msg.Err.Error()
			return m, nil
		}
		m.statusMsg = "Theme: " + msg.ThemeName
		return m, nil
	}

	// Delegate to the current screen
	var cmd tea.Cmd
	switch m.mode {
	case ModeWeek:
		var mdl tea.Model
		mdl, cmd = m.weekView.Update(msg)
		m.weekView = mdl.(views.WeekView)
	case ModeSignIn:
		var mdl tea.Model
		mdl, cmd = m.signInView.Update(msg)
		m.signInView = mdl.(views.SignInView)
	}
	return m, cmd
}

// handleKey handles global keys. handled is false when the key belongs to
// the current screen.
func (m RootModel) handleKey(msg tea.KeyMsg) (RootModel, tea.Cmd, bool) {
	inputMode := m.isInputMode()

	// Clear status/error on any keypress
	m.statusMsg = ""
	if !m.retryable {
		m.errorMsg = ""
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		// ctrl+c always quits, but 'q' only quits when not in input mode
		if msg.String() == "ctrl+c" || !inputMode {
			return m, tea.Quit, true
		}
	case key.Matches(msg, m.keys.ThemeCycle):
		return m, m.cycleTheme(), true
	}

	if inputMode {
		return m, nil, false
	}

	if m.helpVisible {
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.helpVisible = false
			m.help.ShowAll = false
		}
		return m, nil, true
	}

	if key.Matches(msg, m.keys.Help) {
		m.helpVisible = true
		m.help.ShowAll = true
		return m, nil, true
	}

	switch m.mode {
	case ModeError:
		if key.Matches(msg, m.keys.Retry) {
			m.errorMsg = ""
			m.retryable = false
			m.mode = ModeLoading
			m.ctl.Send(reconcile.RetryCmd{})
		}
		return m, nil, true

	case ModeWeek:
		switch {
		case key.Matches(msg, m.keys.PrevWeek):
			m.ctl.Send(reconcile.NavigateCmd{Delta: -1})
			return m, nil, true
		case key.Matches(msg, m.keys.NextWeek):
			m.ctl.Send(reconcile.NavigateCmd{Delta: 1})
			return m, nil, true
		case key.Matches(msg, m.keys.Today):
			m.ctl.Send(reconcile.TodayCmd{})
			return m, nil, true
		case key.Matches(msg, m.keys.SignOut):
			m.ctl.Send(reconcile.SignOutCmd{})
			return m, nil, true
		}
		return m, nil, false
	}
	return m, nil, true
}

// cycleTheme switches to the next theme and saves the choice
func (m *RootModel) cycleTheme() tea.Cmd {
	next := theme.Next()
	theme.SetTheme(next)
	m.statusMsg = fmt.Sprintf("Theme: %s", next.Name)

	path := m.configPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		return themeSavedMsg{ThemeName: next.Name, Err: config.SaveTheme(path, next.Name)}
	}
}

// contentHeight is the space left after the header (1 line) and the
// footer (status + hint line)
func (m RootModel) contentHeight() int {
	return max(m.height-3, 0)
}

// View renders the UI
func (m RootModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	height := m.contentHeight()
	var content string
	switch {
	case m.helpVisible:
		content = m.renderHelp()
	case m.mode == ModeWeek:
		content = m.weekView.View()
	case m.mode == ModeSignIn:
		content = m.signInView.View()
	case m.mode == ModeError:
		content = m.renderError(height)
	default:
		content = m.renderLoading(height)
	}

	// Ensure content fills available space
	lines := strings.Count(content, "\n") + 1
	if lines < height {
		content += strings.Repeat("\n", height-lines)
	}

	return strings.Join([]string{m.renderHeader(), content, m.renderFooter()}, "\n")
}

// renderHeader renders the header bar
func (m RootModel) renderHeader() string {
	styles := theme.Current.Styles
	t := theme.Current.Theme

	title := styles.Header.Render("weekplan")
	subtle := lipgloss.NewStyle().Foreground(t.Subtle).Padding(0, 1)

	left := title
	if m.mode == ModeWeek {
		week := lipgloss.NewStyle().Foreground(t.Foreground).Bold(true).Padding(0, 1).
			Render(calendar.FormatWeekRange(m.weekStart))
		left = lipgloss.JoinHorizontal(lipgloss.Center, title, week, subtle.Render(m.summary()))
	}

	right := subtle.Render(fmt.Sprintf("theme: %s", t.Name))
	if m.identity != nil {
		if id := m.identity(); id != nil {
			right = subtle.Render(id.Name) + right
		}
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return left + strings.Repeat(" ", gap) + right
}

func (m RootModel) summary() string {
	done, total, carried := m.weekView.Summary()
	if total == 0 {
		return "nothing planned"
	}
	s := fmt.Sprintf("%d/%d done", done, total)
	if carried > 0 {
		s += fmt.Sprintf(" · %d carried", carried)
	}
	return s
}

// renderFooter renders the status line and key hints
func (m RootModel) renderFooter() string {
	styles := theme.Current.Styles

	hint := func(k, desc string) string {
		return styles.HelpKey.Render(k) + styles.HelpDesc.Render(" "+desc)
	}
	sep := styles.HelpSeparator.Render(" │ ")

	var status string
	switch {
	case m.errorMsg != "":
		status = styles.Error.Render(m.errorMsg)
	case m.statusMsg != "":
		status = styles.Status.Render(m.statusMsg)
	}

	var hints []string
	switch {
	case m.helpVisible:
		hints = []string{hint("?/esc", "close help")}
	case m.mode == ModeWeek && m.weekView.IsInputMode():
		hints = []string{hint("enter", "save"), hint("tab", "save, next day"), hint("esc", "cancel")}
	case m.mode == ModeWeek:
		hints = []string{
			hint("h/l", "day"), hint("j/k", "task"), hint("[/]", "week"), hint("t", "today"),
			hint("a", "add"), hint("space", "done"), hint("n", "note"), hint("d", "del"),
			hint("?", "help"),
		}
	case m.mode == ModeSignIn:
		hints = []string{hint("enter", "next"), hint("ctrl+c", "quit")}
	case m.mode == ModeError:
		hints = []string{hint("r", "retry"), hint("q", "quit")}
	default:
		hints = []string{hint("q", "quit")}
	}

	return status + "\n" + strings.Join(hints, sep)
}

func (m RootModel) renderLoading(height int) string {
	t := theme.Current.Theme
	msg := m.statusMsg
	if msg == "" {
		msg = "Loading…"
	}
	text := lipgloss.NewStyle().Foreground(t.Subtle).Render(msg)
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, text)
}

func (m RootModel) renderError(height int) string {
	styles := theme.Current.Styles
	body := styles.PanelTitle.Render("Something's wrong") + "\n\n" +
		styles.Error.Render(m.errorMsg) + "\n\n" +
		styles.HelpKey.Render("r") + styles.HelpDesc.Render(" try again")
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, styles.Panel.Render(body))
}

// renderHelp renders the help overlay
func (m RootModel) renderHelp() string {
	t := theme.Current.Theme

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).MarginTop(1)
	keyStyle := lipgloss.NewStyle().Foreground(t.Foreground).Bold(true).Width(12)
	descStyle := lipgloss.NewStyle().Foreground(t.Subtle)

	sections := []struct {
		title string
		keys  [][]string
	}{
		{"Navigation", [][]string{
			{"←/h →/l", "Previous/next day"},
			{"↑/k ↓/j", "Previous/next task"},
			{"[ / ]", "Previous/next week"},
			{"t", "Back to this week"},
		}},
		{"Tasks", [][]string{
			{"a", "Add a task to the selected day"},
			{"space", "Toggle done"},
			{"n", "Edit note"},
			{"d", "Delete task"},
			{"tab", "While adding: save and move to the next day"},
		}},
		{"System", [][]string{
			{"ctrl+t", "Cycle theme"},
			{"S", "Sign out"},
			{"q / ctrl+c", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("weekplan help"))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString(sectionStyle.Render(s.title))
		b.WriteString("\n")
		for _, kv := range s.keys {
			b.WriteString(keyStyle.Render(kv[0]))
			b.WriteString(descStyle.Render(kv[1]))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(descStyle.Render("Unfinished tasks from earlier days move to today when the app starts (↻)."))
	return b.String()
}
