// Package carry moves incomplete tasks from past days onto today.
package carry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
)

// Patcher reschedules a single task. *taskstore.Store satisfies it.
type Patcher interface {
	Reschedule(ctx context.Context, id, date string) error
}

// PartialError reports a carry-forward where some reschedules failed.
// The collection returned alongside it must not be rendered.
type PartialError struct {
	Failed  []string // ids whose reschedule failed
	Carried []string // ids that were rescheduled
	Err     error    // combined per-task errors
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("carry forward: %d of %d tasks failed (%s): %v",
		len(e.Failed), len(e.Failed)+len(e.Carried), strings.Join(e.Failed, ", "), e.Err)
}

func (e *PartialError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

// Result is the outcome of a successful run
type Result struct {
	Tasks   []model.Task
	Carried []string
}

// Due returns the tasks that must be moved onto todayKey: incomplete and
// dated strictly before it. Keys are fixed width so string order is day order.
func Due(tasks []model.Task, todayKey string) []model.Task {
	var due []model.Task
	for _, t := range tasks {
		if !t.Completed && t.Date < todayKey {
			due = append(due, t)
		}
	}
	return due
}

// CarryForward reschedules every due task to the day of now and returns the
// updated collection. Only the date changes; id, text, originalDate and
// createdAt are kept. All reschedules are attempted even if some fail.
func CarryForward(ctx context.Context, now time.Time, tasks []model.Task, p Patcher) (Result, error) {
	todayKey := calendar.DayKey(now)
	due := Due(tasks, todayKey)

	var (
		carried []string
		failed  []string
		errs    error
	)
	moved := make(map[string]bool, len(due))
	for _, t := range due {
		if err := p.Reschedule(ctx, t.ID, todayKey); err != nil {
			failed = append(failed, t.ID)
			errs = multierr.Append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		carried = append(carried, t.ID)
		moved[t.ID] = true
	}

	if len(failed) > 0 {
		return Result{}, &PartialError{Failed: failed, Carried: carried, Err: errs}
	}

	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if moved[t.ID] {
			t.Date = todayKey
		}
		out[i] = t
	}
	return Result{Tasks: out, Carried: carried}, nil
}

// Engine binds CarryForward to a patcher and clock
type Engine struct {
	Patcher Patcher
	Clock   calendar.Clock
}

// Run carries forward against the engine clock's today
func (e Engine) Run(ctx context.Context, tasks []model.Task) (Result, error) {
	clock := e.Clock
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return CarryForward(ctx, calendar.Today(clock), tasks, e.Patcher)
}
