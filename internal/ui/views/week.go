package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/ui/theme"
)

// Narrowest day column before the week is stacked vertically
const minColumnWidth = 18

// WeekRenderMsg carries the tasks of one week as rendered by the controller
type WeekRenderMsg struct {
	WeekStart time.Time
	Tasks     []model.Task
}

// TaskWriteMsg reports the result of a write issued from the week view
type TaskWriteMsg struct {
	Op  string
	Err error
}

// TaskWriter is the write side of the task store. *taskstore.Store
// satisfies it.
type TaskWriter interface {
	Create(ctx context.Context, text, date string) (model.Task, error)
	Toggle(ctx context.Context, id string, completed bool) error
	SetNote(ctx context.Context, id, note string) error
	Remove(ctx context.Context, id string) error
}

type weekMode int

const (
	weekModeNormal weekMode = iota
	weekModeAdd
	weekModeNote
	weekModeConfirmDelete
)

// WeekView shows seven day panels and edits the tasks in them
type WeekView struct {
	store  TaskWriter
	clock  calendar.Clock
	width  int
	height int

	weekStart time.Time
	byDay     map[string][]model.Task
	loaded    bool

	// Cursor
	day int
	row int

	mode       weekMode
	input      textinput.Model
	session    *InputSession
	noteTaskID string
	deleteTask model.Task
}

// NewWeekView creates a week view that writes through store
func NewWeekView(store TaskWriter, clock calendar.Clock) WeekView {
	ti := textinput.New()
	ti.CharLimit = 256

	return WeekView{
		store: store,
		clock: clock,
		byDay: make(map[string][]model.Task),
		input: ti,
	}
}

// Init initializes the week view
func (v WeekView) Init() tea.Cmd {
	return nil
}

// SetSize sets the view dimensions
func (v WeekView) SetSize(width, height int) WeekView {
	v.width = width
	v.height = height
	v.input.Width = v.columnWidth() - 6
	return v
}

// IsInputMode returns whether keys should go to the view rather than global bindings
func (v WeekView) IsInputMode() bool {
	return v.mode != weekModeNormal
}

// WeekStart returns the Monday of the rendered week
func (v WeekView) WeekStart() time.Time {
	return v.weekStart
}

// SelectedDay returns the day under the cursor
func (v WeekView) SelectedDay() time.Time {
	return v.weekStart.AddDate(0, 0, v.day)
}

// SelectedTask returns the task under the cursor, if any
func (v WeekView) SelectedTask() (model.Task, bool) {
	tasks := v.byDay[calendar.DayKey(v.SelectedDay())]
	if v.row < 0 || v.row >= len(tasks) {
		return model.Task{}, false
	}
	return tasks[v.row], true
}

// Summary counts the rendered week's tasks
func (v WeekView) Summary() (done, total, carried int) {
	for _, tasks := range v.byDay {
		for _, t := range tasks {
			total++
			if t.Completed {
				done++
			} else if t.Carried() {
				carried++
			}
		}
	}
	return done, total, carried
}

// Update handles messages
func (v WeekView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case WeekRenderMsg:
		newWeek := !v.loaded || !v.weekStart.Equal(msg.WeekStart)
		v.weekStart = msg.WeekStart
		v.byDay = groupByDay(msg.Tasks)
		v.loaded = true
		if newWeek {
			v.day = v.todayIndex()
			v.row = 0
		}
		v.clampRow()
		return v, nil

	case tea.BlurMsg:
		// Leaving the terminal counts as leaving the input
		if v.mode == weekModeNote {
			return v.commitNote()
		}
		return v.commitAdd()

	case tea.KeyMsg:
		switch v.mode {
		case weekModeAdd:
			return v.handleAddKey(msg)
		case weekModeNote:
			return v.handleNoteKey(msg)
		case weekModeConfirmDelete:
			return v.handleDeleteConfirm(msg)
		default:
			return v.handleKey(msg)
		}
	}

	if v.mode == weekModeAdd || v.mode == weekModeNote {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v WeekView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "left":
		v.moveDay(-1)
	case "l", "right":
		v.moveDay(1)
	case "k", "up":
		if v.row > 0 {
			v.row--
		}
	case "j", "down":
		v.row++
		v.clampRow()

	case "a":
		v.mode = weekModeAdd
		v.session = NewInputSession(calendar.DayKey(v.SelectedDay()))
		v.input.SetValue("")
		v.input.Placeholder = "New task for " + calendar.FormatDisplay(v.SelectedDay())
		v.input.Focus()
		return v, textinput.Blink

	case "n":
		task, ok := v.SelectedTask()
		if !ok {
			return v, nil
		}
		v.mode = weekModeNote
		v.noteTaskID = task.ID
		v.input.SetValue(task.Note)
		v.input.Placeholder = "Note (empty clears it)"
		v.input.CursorEnd()
		v.input.Focus()
		return v, textinput.Blink

	case " ":
		task, ok := v.SelectedTask()
		if !ok {
			return v, nil
		}
		return v, v.toggleTask(task)

	case "d":
		if task, ok := v.SelectedTask(); ok {
			v.mode = weekModeConfirmDelete
			v.deleteTask = task
		}
	}
	return v, nil
}

func (v WeekView) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v.commitAdd()
	case "tab", "shift+tab":
		// Moving to another day blurs the input
		var cmd tea.Cmd
		v, cmd = v.commitAdd()
		if msg.String() == "tab" {
			v.moveDay(1)
		} else {
			v.moveDay(-1)
		}
		return v, cmd
	case "esc":
		v.session.Cancel()
		v.closeInput()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// commitAdd closes the add input and creates the task, at most once per
// input session
func (v WeekView) commitAdd() (WeekView, tea.Cmd) {
	text := strings.TrimSpace(v.input.Value())
	session := v.session
	if v.mode == weekModeAdd {
		v.closeInput()
	}
	if !session.TryCommitOnce() || text == "" {
		return v, nil
	}
	return v, v.createTask(text, session.Day)
}

// commitNote closes the note input and saves what was typed
func (v WeekView) commitNote() (WeekView, tea.Cmd) {
	id, note := v.noteTaskID, v.input.Value()
	v.closeInput()
	return v, v.setNote(id, note)
}

func (v WeekView) handleNoteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v.commitNote()
	case "esc":
		v.closeInput()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleDeleteConfirm handles keypresses in delete confirmation
func (v WeekView) handleDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		v.mode = weekModeNormal
		task := v.deleteTask
		v.deleteTask = model.Task{}
		return v, v.removeTask(task.ID)
	case "n", "N", "esc":
		v.mode = weekModeNormal
		v.deleteTask = model.Task{}
	}
	return v, nil
}

func (v *WeekView) closeInput() {
	v.mode = weekModeNormal
	v.noteTaskID = ""
	v.input.SetValue("")
	v.input.Blur()
}

func (v *WeekView) moveDay(delta int) {
	v.day += delta
	if v.day < 0 {
		v.day = 0
	}
	if v.day >= calendar.DaysPerWeek {
		v.day = calendar.DaysPerWeek - 1
	}
	v.clampRow()
}

func (v *WeekView) clampRow() {
	n := len(v.byDay[calendar.DayKey(v.SelectedDay())])
	if v.row >= n {
		v.row = n - 1
	}
	if v.row < 0 {
		v.row = 0
	}
}

func (v WeekView) todayIndex() int {
	today := calendar.DayKey(calendar.Today(v.clock))
	for i, d := range calendar.WeekDays(v.weekStart) {
		if calendar.DayKey(d) == today {
			return i
		}
	}
	return 0
}

// Store commands. Results come back as TaskWriteMsg; the new state arrives
// through the subscription.

func (v WeekView) createTask(text, day string) tea.Cmd {
	store := v.store
	return func() tea.Msg {
		_, err := store.Create(context.Background(), text, day)
		return TaskWriteMsg{Op: "add", Err: err}
	}
}

func (v WeekView) toggleTask(task model.Task) tea.Cmd {
	store := v.store
	return func() tea.Msg {
		err := store.Toggle(context.Background(), task.ID, !task.Completed)
		return TaskWriteMsg{Op: "toggle", Err: err}
	}
}

func (v WeekView) setNote(id, note string) tea.Cmd {
	store := v.store
	return func() tea.Msg {
		err := store.SetNote(context.Background(), id, note)
		return TaskWriteMsg{Op: "note", Err: err}
	}
}

func (v WeekView) removeTask(id string) tea.Cmd {
	store := v.store
	return func() tea.Msg {
		err := store.Remove(context.Background(), id)
		return TaskWriteMsg{Op: "delete", Err: err}
	}
}

func groupByDay(tasks []model.Task) map[string][]model.Task {
	byDay := make(map[string][]model.Task)
	for _, t := range tasks {
		byDay[t.Date] = append(byDay[t.Date], t)
	}
	return byDay
}

func (v WeekView) horizontal() bool {
	return v.width >= minColumnWidth*calendar.DaysPerWeek
}

func (v WeekView) columnWidth() int {
	if v.horizontal() {
		return v.width / calendar.DaysPerWeek
	}
	return v.width
}

// View renders the week
func (v WeekView) View() string {
	if v.width == 0 || v.height == 0 || !v.loaded {
		return "Loading..."
	}

	t := theme.Current.Theme
	days := calendar.WeekDays(v.weekStart)
	width := v.columnWidth()

	panels := make([]string, len(days))
	for i, d := range days {
		panels[i] = v.renderDay(i, d, width)
	}

	var grid string
	if v.horizontal() {
		grid = lipgloss.JoinHorizontal(lipgloss.Top, panels...)
	} else {
		grid = lipgloss.JoinVertical(lipgloss.Left, panels...)
	}

	if v.mode == weekModeConfirmDelete {
		confirm := lipgloss.NewStyle().Foreground(t.Warning).Bold(true).
			Render(fmt.Sprintf("Delete %q? (y/n)", truncate(v.deleteTask.Text, 40)))
		grid = lipgloss.JoinVertical(lipgloss.Left, grid, confirm)
	}
	return grid
}

// renderDay renders one day panel
func (v WeekView) renderDay(i int, day time.Time, width int) string {
	styles := theme.Current.Styles
	selected := i == v.day
	inner := width - 4 // border and padding

	title := styles.DayTitle.Render(day.Format("Mon 2"))
	switch {
	case calendar.IsToday(v.clock, day):
		title += " " + styles.TodayBadge.Render("today")
	case calendar.IsPast(v.clock, day):
		title = styles.PastTitle.Render(day.Format("Mon 2"))
	}

	lines := []string{title}
	tasks := v.byDay[calendar.DayKey(day)]
	if len(tasks) == 0 && !(selected && v.mode == weekModeAdd) {
		lines = append(lines, styles.Empty.Render("No tasks"))
	}

	for j, task := range tasks {
		lines = append(lines, v.renderTask(task, selected && j == v.row, inner)...)
		if selected && v.mode == weekModeNote && task.ID == v.noteTaskID {
			lines = append(lines, styles.InputFocused.Render(v.input.View()))
		}
	}

	if selected && v.mode == weekModeAdd {
		lines = append(lines, styles.InputFocused.Render(v.input.View()))
	}

	panel := styles.Day
	if selected {
		panel = styles.DaySelected
	}
	panel = panel.Width(width - 2)
	if v.horizontal() {
		panel = panel.Height(v.height - 3)
	}
	return panel.Render(strings.Join(lines, "\n"))
}

// renderTask renders a task line plus its carried marker and note
func (v WeekView) renderTask(task model.Task, cursor bool, width int) []string {
	styles := theme.Current.Styles

	checkbox := "☐"
	style := styles.TaskNormal
	switch {
	case task.Completed:
		checkbox = "☑"
		style = styles.TaskDone
	case task.Carried():
		style = styles.TaskCarried
	}
	if cursor && v.mode != weekModeAdd {
		style = style.Inherit(styles.TaskSelected)
	}

	lines := []string{style.Render(checkbox + " " + truncate(task.Text, width-2))}

	if task.Carried() {
		from := task.OriginalDate
		if d, err := calendar.ParseDayKey(from); err == nil {
			from = calendar.FormatDisplay(d)
		}
		lines = append(lines, styles.TaskCarried.Render("  ↻ "+truncate(from, width-4)))
	}
	if task.Note != "" {
		lines = append(lines, styles.Note.Render("  ✎ "+truncate(task.Note, width-4)))
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
