package carry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

// recorder is a Patcher that remembers every reschedule
type recorder struct {
	calls map[string]string
	fail  map[string]bool
}

func newRecorder() *recorder {
	return &recorder{calls: map[string]string{}, fail: map[string]bool{}}
}

func (r *recorder) Reschedule(_ context.Context, id, date string) error {
	if r.fail[id] {
		return errors.New("connection reset")
	}
	r.calls[id] = date
	return nil
}

var wednesday = time.Date(2024, time.June, 12, 8, 30, 0, 0, time.Local)

func TestScenarioIncompletePastTaskIsCarried(t *testing.T) {
	a := model.Task{ID: "A", Text: "Call bank", Date: "2024-06-10", OriginalDate: "2024-06-10", CreatedAt: 1}
	b := model.Task{ID: "B", Text: "Gym", Date: "2024-06-10", OriginalDate: "2024-06-10", Completed: true, CreatedAt: 2}
	p := newRecorder()

	res, err := CarryForward(context.Background(), wednesday, []model.Task{a, b}, p)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)

	gotA, gotB := res.Tasks[0], res.Tasks[1]
	assert.Equal(t, "2024-06-12", gotA.Date)
	assert.Equal(t, "2024-06-10", gotA.OriginalDate)
	assert.True(t, gotA.Carried())
	assert.Equal(t, b, gotB)

	assert.Equal(t, map[string]string{"A": "2024-06-12"}, p.calls)
	assert.Equal(t, []string{"A"}, res.Carried)
}

func TestFutureAndTodayUntouched(t *testing.T) {
	tasks := []model.Task{
		{ID: "today", Date: "2024-06-12", OriginalDate: "2024-06-12"},
		{ID: "future", Date: "2024-07-01", OriginalDate: "2024-06-01"},
	}
	p := newRecorder()

	res, err := CarryForward(context.Background(), wednesday, tasks, p)
	require.NoError(t, err)
	assert.Equal(t, tasks, res.Tasks)
	assert.Empty(t, p.calls)
}

func TestInputNotMutated(t *testing.T) {
	tasks := []model.Task{{ID: "A", Date: "2024-06-01", OriginalDate: "2024-06-01"}}
	_, err := CarryForward(context.Background(), wednesday, tasks, newRecorder())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", tasks[0].Date)
}

func TestPartialFailureReportsIDs(t *testing.T) {
	tasks := []model.Task{
		{ID: "A", Date: "2024-06-10", OriginalDate: "2024-06-10"},
		{ID: "B", Date: "2024-06-11", OriginalDate: "2024-06-11"},
		{ID: "C", Date: "2024-06-09", OriginalDate: "2024-06-09"},
	}
	p := newRecorder()
	p.fail["B"] = true
	p.fail["C"] = true

	res, err := CarryForward(context.Background(), wednesday, tasks, p)
	require.Error(t, err)
	assert.Nil(t, res.Tasks)

	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"B", "C"}, pe.Failed)
	assert.Equal(t, []string{"A"}, pe.Carried)
	assert.Contains(t, err.Error(), "2 of 3")

	// A was still attempted and applied
	assert.Equal(t, "2024-06-12", p.calls["A"])
}

func TestPartialFailureUnwrapsToCause(t *testing.T) {
	backend := taskstore.NewMemoryBackend()
	store := taskstore.New(backend, taskstore.StaticSession{Identity: &model.Identity{ID: "u"}})
	backend.Seed("u", model.Task{ID: "A", Date: "2024-06-10", OriginalDate: "2024-06-10"})
	backend.FailUpdate = func(string, model.Patch) error { return fmt.Errorf("database is locked") }

	_, err := CarryForward(context.Background(), wednesday, []model.Task{{ID: "A", Date: "2024-06-10"}}, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, taskstore.ErrTransient)
}

func randomTasks(r *rand.Rand, n int) []model.Task {
	base := time.Date(2024, time.May, 20, 0, 0, 0, 0, time.Local)
	tasks := make([]model.Task, n)
	for i := range tasks {
		orig := calendar.DayKey(base.AddDate(0, 0, r.Intn(30)))
		date := calendar.DayKey(base.AddDate(0, 0, r.Intn(45)))
		tasks[i] = model.Task{
			ID:           fmt.Sprintf("t%03d", i),
			Text:         fmt.Sprintf("task %d", i),
			Completed:    r.Intn(3) == 0,
			Date:         date,
			OriginalDate: orig,
			CreatedAt:    int64(r.Intn(1000)),
		}
	}
	return tasks
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	todayKey := calendar.DayKey(wednesday)

	for round := 0; round < 200; round++ {
		in := randomTasks(r, r.Intn(25))

		first, err := CarryForward(context.Background(), wednesday, in, newRecorder())
		require.NoError(t, err)
		require.Len(t, first.Tasks, len(in))

		for i, before := range in {
			after := first.Tasks[i]

			// identity preservation
			assert.Equal(t, before.ID, after.ID)
			assert.Equal(t, before.OriginalDate, after.OriginalDate)
			assert.Equal(t, before.Text, after.Text)
			assert.Equal(t, before.CreatedAt, after.CreatedAt)

			// completed and not-past tasks keep their date
			if before.Completed || before.Date >= todayKey {
				assert.Equal(t, before.Date, after.Date)
			} else {
				assert.Equal(t, todayKey, after.Date)
			}
		}

		// idempotence: a second run selects nothing and changes nothing
		p := newRecorder()
		second, err := CarryForward(context.Background(), wednesday, first.Tasks, p)
		require.NoError(t, err)
		assert.Equal(t, first.Tasks, second.Tasks)
		assert.Empty(t, p.calls)
		assert.Empty(t, Due(second.Tasks, todayKey))
	}
}

func TestEngineUsesClock(t *testing.T) {
	p := newRecorder()
	e := Engine{Patcher: p, Clock: calendar.FixedClock(wednesday)}

	res, err := e.Run(context.Background(), []model.Task{{ID: "A", Date: "2024-06-11", OriginalDate: "2024-06-11"}})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-12", res.Tasks[0].Date)
}

func TestEndToEndWithStore(t *testing.T) {
	ctx := context.Background()
	backend := taskstore.NewMemoryBackend()
	id := &model.Identity{ID: "u"}
	store := taskstore.New(backend, taskstore.StaticSession{Identity: id})
	backend.Seed("u",
		model.Task{ID: "A", Text: "a", Date: "2024-06-10", OriginalDate: "2024-06-10", CreatedAt: 1},
		model.Task{ID: "B", Text: "b", Date: "2024-06-10", OriginalDate: "2024-06-10", Completed: true, CreatedAt: 2},
	)

	tasks, err := store.FetchAll(ctx)
	require.NoError(t, err)
	res, err := CarryForward(ctx, wednesday, tasks, store)
	require.NoError(t, err)

	persisted, err := store.FetchAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, res.Tasks, persisted)
}
