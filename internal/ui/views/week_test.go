package views

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
)

var (
	wednesday = time.Date(2024, time.June, 12, 9, 0, 0, 0, time.Local)
	monday    = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.Local)
)

type created struct {
	text string
	date string
}

type fakeWriter struct {
	mu      sync.Mutex
	created []created
	toggled map[string]bool
	notes   map[string]string
	removed []string
	err     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{toggled: map[string]bool{}, notes: map[string]string{}}
}

func (w *fakeWriter) Create(_ context.Context, text, date string) (model.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return model.Task{}, w.err
	}
	w.created = append(w.created, created{text, date})
	return model.Task{ID: "new", Text: text, Date: date, OriginalDate: date}, nil
}

func (w *fakeWriter) Toggle(_ context.Context, id string, completed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.toggled[id] = completed
	return w.err
}

func (w *fakeWriter) SetNote(_ context.Context, id, note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes[id] = note
	return w.err
}

func (w *fakeWriter) Remove(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = append(w.removed, id)
	return w.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// send feeds msgs through the view and runs any write commands it returns
func send(t *testing.T, v WeekView, msgs ...tea.Msg) (WeekView, []TaskWriteMsg) {
	t.Helper()
	var writes []TaskWriteMsg
	for _, msg := range msgs {
		mdl, cmd := v.Update(msg)
		v = mdl.(WeekView)
		writes = append(writes, drain(cmd)...)
	}
	return v, writes
}

func drain(cmd tea.Cmd) []TaskWriteMsg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case TaskWriteMsg:
		return []TaskWriteMsg{msg}
	case tea.BatchMsg:
		var out []TaskWriteMsg
		for _, c := range msg {
			out = append(out, drain(c)...)
		}
		return out
	}
	return nil
}

func loadedView(t *testing.T, w *fakeWriter, tasks ...model.Task) WeekView {
	t.Helper()
	v := NewWeekView(w, calendar.FixedClock(wednesday)).SetSize(210, 30)
	v, _ = send(t, v, WeekRenderMsg{WeekStart: monday, Tasks: tasks})
	return v
}

func typeText(t *testing.T, v WeekView, s string) WeekView {
	t.Helper()
	v, _ = send(t, v, runes("a"))
	require.True(t, v.IsInputMode())
	for _, r := range s {
		v, _ = send(t, v, runes(string(r)))
	}
	return v
}

func TestRenderPlacesCursorOnToday(t *testing.T) {
	v := loadedView(t, newFakeWriter())
	assert.Equal(t, "2024-06-12", calendar.DayKey(v.SelectedDay()))
	assert.Equal(t, monday, v.WeekStart())
}

func TestEnterThenBlurCreatesOneTask(t *testing.T) {
	w := newFakeWriter()
	v := typeText(t, loadedView(t, w), "buy milk")

	v, writes := send(t, v, keyOf(tea.KeyEnter), tea.BlurMsg{})

	assert.False(t, v.IsInputMode())
	assert.Len(t, writes, 1)
	assert.Equal(t, []created{{"buy milk", "2024-06-12"}}, w.created)
}

func TestCommitTwiceFromSameValue(t *testing.T) {
	w := newFakeWriter()
	v := typeText(t, loadedView(t, w), "call mom")

	// Both handlers see the pre-commit value, sharing one session
	_, first := v.commitAdd()
	_, second := v.commitAdd()

	assert.Len(t, drain(first), 1)
	assert.Nil(t, second)
	assert.Len(t, w.created, 1)
}

func TestTabCommitsAndMovesDay(t *testing.T) {
	w := newFakeWriter()
	v := typeText(t, loadedView(t, w), "stretch")

	v, _ = send(t, v, keyOf(tea.KeyTab), tea.BlurMsg{})

	assert.Equal(t, []created{{"stretch", "2024-06-12"}}, w.created)
	assert.Equal(t, "2024-06-13", calendar.DayKey(v.SelectedDay()))
	assert.False(t, v.IsInputMode())
}

func TestEscDiscardsInput(t *testing.T) {
	w := newFakeWriter()
	v := typeText(t, loadedView(t, w), "never mind")

	v, writes := send(t, v, keyOf(tea.KeyEscape), tea.BlurMsg{})

	assert.Empty(t, writes)
	assert.Empty(t, w.created)
	assert.False(t, v.IsInputMode())
}

func TestBlankTextCreatesNothing(t *testing.T) {
	w := newFakeWriter()
	v := typeText(t, loadedView(t, w), "   ")

	_, writes := send(t, v, keyOf(tea.KeyEnter))

	assert.Empty(t, writes)
	assert.Empty(t, w.created)
}

func TestToggleAndNote(t *testing.T) {
	w := newFakeWriter()
	task := model.Task{ID: "t1", Text: "write report", Date: "2024-06-12", OriginalDate: "2024-06-12"}
	v := loadedView(t, w, task)

	v, _ = send(t, v, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Equal(t, map[string]bool{"t1": true}, w.toggled)

	v, _ = send(t, v, runes("n"))
	require.True(t, v.IsInputMode())
	for _, r := range "draft" {
		v, _ = send(t, v, runes(string(r)))
	}
	v, _ = send(t, v, keyOf(tea.KeyEnter))
	assert.Equal(t, "draft", w.notes["t1"])
	assert.False(t, v.IsInputMode())
}

func TestBlurSavesNote(t *testing.T) {
	w := newFakeWriter()
	task := model.Task{ID: "t1", Text: "write report", Date: "2024-06-12", OriginalDate: "2024-06-12", Note: "old"}
	v := loadedView(t, w, task)

	v, _ = send(t, v, runes("n"))
	require.True(t, v.IsInputMode())
	v, _ = send(t, v, keyOf(tea.KeyBackspace), keyOf(tea.KeyBackspace), keyOf(tea.KeyBackspace))
	for _, r := range "ask Sam" {
		v, _ = send(t, v, runes(string(r)))
	}

	// Switching away from the terminal keeps what was typed, and only once
	v, writes := send(t, v, tea.BlurMsg{}, tea.BlurMsg{})

	assert.Len(t, writes, 1)
	assert.Equal(t, "ask Sam", w.notes["t1"])
	assert.False(t, v.IsInputMode())
	assert.Empty(t, w.created)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	w := newFakeWriter()
	task := model.Task{ID: "t1", Text: "old idea", Date: "2024-06-12", OriginalDate: "2024-06-12"}
	v := loadedView(t, w, task)

	v, _ = send(t, v, runes("d"))
	assert.Contains(t, v.View(), "Delete \"old idea\"?")
	v, _ = send(t, v, runes("n"))
	assert.Empty(t, w.removed)

	v, _ = send(t, v, runes("d"), runes("y"))
	assert.Equal(t, []string{"t1"}, w.removed)
	assert.False(t, v.IsInputMode())
}

func TestWriteErrorIsReported(t *testing.T) {
	w := newFakeWriter()
	w.err = errors.New("disk full")
	v := typeText(t, loadedView(t, w), "x")

	_, writes := send(t, v, keyOf(tea.KeyEnter))

	require.Len(t, writes, 1)
	assert.Equal(t, "add", writes[0].Op)
	assert.EqualError(t, writes[0].Err, "disk full")
}

func TestViewShowsCarriedAndNote(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Text: "carried over", Date: "2024-06-12", OriginalDate: "2024-06-10"},
		{ID: "b", Text: "with note", Date: "2024-06-11", OriginalDate: "2024-06-11", Note: "bring charger"},
	}
	out := loadedView(t, newFakeWriter(), tasks...).View()

	assert.Contains(t, out, "today")
	assert.Contains(t, out, "↻")
	assert.Contains(t, out, "bring charger")
	assert.Equal(t, 1, strings.Count(out, "carried over"))
}

func TestRenderSameWeekKeepsCursor(t *testing.T) {
	w := newFakeWriter()
	v := loadedView(t, w)
	v, _ = send(t, v, runes("l"), runes("l"))
	require.Equal(t, "2024-06-14", calendar.DayKey(v.SelectedDay()))

	v, _ = send(t, v, WeekRenderMsg{WeekStart: monday})
	assert.Equal(t, "2024-06-14", calendar.DayKey(v.SelectedDay()))

	v, _ = send(t, v, WeekRenderMsg{WeekStart: monday.AddDate(0, 0, 7)})
	assert.Equal(t, "2024-06-17", calendar.DayKey(v.SelectedDay()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "hé…", truncate("héllo", 3))
	assert.Equal(t, "", truncate("héllo", 0))
}

func TestSummary(t *testing.T) {
	v := loadedView(t, newFakeWriter(),
		model.Task{ID: "a", Text: "a", Date: "2024-06-12", OriginalDate: "2024-06-10"},
		model.Task{ID: "b", Text: "b", Date: "2024-06-11", OriginalDate: "2024-06-11", Completed: true},
		model.Task{ID: "c", Text: "c", Date: "2024-06-13", OriginalDate: "2024-06-13"},
	)
	done, total, carried := v.Summary()
	assert.Equal(t, 1, done)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, carried)
}
