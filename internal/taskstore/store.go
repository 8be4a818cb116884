// Package taskstore is the single writer of task records. It scopes every
// operation to the signed-in identity and owns task id generation.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
)

var (
	// ErrUnauthenticated is returned when no identity is signed in
	ErrUnauthenticated = errors.New("not signed in")

	// ErrTransient marks backend failures (network, disk, locked database)
	ErrTransient = errors.New("task storage unavailable")

	// ErrNotFound is returned by backends when a task id does not exist
	ErrNotFound = errors.New("task not found")
)

// StoreError wraps a backend failure. It matches ErrTransient and the
// underlying cause with errors.Is.
type StoreError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *StoreError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s task %s: %v", e.Op, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrTransient, e.Err}
}

// Backend is the persistent key-value store, keyed by (identity, task id)
type Backend interface {
	Get(ctx context.Context, userID string) ([]model.Task, error)
	Set(ctx context.Context, userID string, task model.Task) error
	Update(ctx context.Context, userID, taskID string, patch model.Patch) error
	Remove(ctx context.Context, userID, taskID string) error
	// Subscribe delivers the current task set, then the full set again after
	// every change. The returned func stops delivery and closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan []model.Task, func(), error)
}

// RangeReader is implemented by backends that can select a date range
// themselves. *db.DB satisfies it.
type RangeReader interface {
	GetTasksForRange(ctx context.Context, userID, from, to string) ([]model.Task, error)
}

// Session exposes the currently signed-in identity, nil when signed out
type Session interface {
	Current() *model.Identity
}

// Store is the task CRUD and subscription facade
type Store struct {
	backend Backend
	session Session
	clock   calendar.Clock
	newID   func() string
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for createdAt
func WithClock(c calendar.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator overrides task id generation
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store over backend scoped by session
func New(backend Backend, session Session, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		session: session,
		clock:   calendar.SystemClock{},
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) userID() (string, error) {
	if s.session == nil {
		return "", ErrUnauthenticated
	}
	id := s.session.Current()
	if id == nil || id.ID == "" {
		return "", ErrUnauthenticated
	}
	return id.ID, nil
}

// Create adds a task on the given day
func (s *Store) Create(ctx context.Context, text, date string) (model.Task, error) {
	uid, err := s.userID()
	if err != nil {
		return model.Task{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, model.ErrEmptyText
	}
	if !model.ValidDayKey(date) {
		return model.Task{}, fmt.Errorf("create task on %q: %w", date, model.ErrBadDayKey)
	}

	task := model.Task{
		ID:           s.newID(),
		Text:         text,
		Completed:    false,
		Date:         date,
		OriginalDate: date,
		CreatedAt:    s.clock.Now().UnixMilli(),
	}
	if err := s.backend.Set(ctx, uid, task); err != nil {
		return model.Task{}, wrap("create", task.ID, err)
	}
	return task, nil
}

// Patch applies a partial update
func (s *Store) Patch(ctx context.Context, id string, patch model.Patch) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("patch task %s: %w", id, err)
	}
	if patch.Text != nil {
		trimmed := strings.TrimSpace(*patch.Text)
		patch.Text = &trimmed
	}
	if err := s.backend.Update(ctx, uid, id, patch); err != nil {
		return wrap("update", id, err)
	}
	return nil
}

// Toggle sets the completion state
func (s *Store) Toggle(ctx context.Context, id string, completed bool) error {
	return s.Patch(ctx, id, model.CompletedPatch(completed))
}

// SetNote replaces the note; an empty note clears it
func (s *Store) SetNote(ctx context.Context, id, note string) error {
	return s.Patch(ctx, id, model.NotePatch(strings.TrimSpace(note)))
}

// Reschedule moves a task to another day. Used by carry-forward.
func (s *Store) Reschedule(ctx context.Context, id, date string) error {
	return s.Patch(ctx, id, model.DatePatch(date))
}

// Remove deletes a task
func (s *Store) Remove(ctx context.Context, id string) error {
	uid, err := s.userID()
	if err != nil {
		return err
	}
	if err := s.backend.Remove(ctx, uid, id); err != nil {
		return wrap("remove", id, err)
	}
	return nil
}

// FetchAll returns a one-time snapshot of every task
func (s *Store) FetchAll(ctx context.Context) ([]model.Task, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	tasks, err := s.backend.Get(ctx, uid)
	if err != nil {
		return nil, wrap("fetch", "", err)
	}
	return tasks, nil
}

// FetchRange returns the tasks dated within [from, to], ordered by date
// then creation
func (s *Store) FetchRange(ctx context.Context, from, to string) ([]model.Task, error) {
	uid, err := s.userID()
	if err != nil {
		return nil, err
	}
	if !model.ValidDayKey(from) || !model.ValidDayKey(to) {
		return nil, fmt.Errorf("fetch %q to %q: %w", from, to, model.ErrBadDayKey)
	}

	if r, ok := s.backend.(RangeReader); ok {
		tasks, err := r.GetTasksForRange(ctx, uid, from, to)
		if err != nil {
			return nil, wrap("fetch", "", err)
		}
		return tasks, nil
	}

	tasks, err := s.backend.Get(ctx, uid)
	if err != nil {
		return nil, wrap("fetch", "", err)
	}
	return TasksInRange(tasks, from, to), nil
}

// Subscribe streams the current snapshot, then a full one after every change
func (s *Store) Subscribe(ctx context.Context) (<-chan []model.Task, func(), error) {
	uid, err := s.userID()
	if err != nil {
		return nil, nil, err
	}
	ch, cancel, err := s.backend.Subscribe(ctx, uid)
	if err != nil {
		return nil, nil, wrap("subscribe", "", err)
	}
	return ch, cancel, nil
}

func wrap(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s task %s: %w", op, id, err)
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, TaskID: id, Err: err}
}

// TasksForDay returns the tasks scheduled on key, oldest first
func TasksForDay(tasks []model.Task, key string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Date == key {
			out = append(out, t)
		}
	}
	SortByCreated(out)
	return out
}

// TasksInRange returns tasks whose date is within [from, to], ordered by
// date then creation
func TasksInRange(tasks []model.Task, from, to string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Date >= from && t.Date <= to {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return less(out[i], out[j])
	})
	return out
}

// SortByCreated orders tasks by createdAt, ties broken by id
func SortByCreated(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return less(tasks[i], tasks[j])
	})
}

func less(a, b model.Task) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}
