package taskstore

import (
	"context"
	"sync"

	"github.com/dori/weekplan/internal/model"
)

// MemoryBackend keeps tasks in process memory. It backs the "memory"
// backend setting and the tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	tasks map[string]map[string]model.Task
	feeds map[string]*Feed

	// FailUpdate, when set, is consulted before every Update
	FailUpdate func(taskID string, patch model.Patch) error
	// FailGet, when set, is returned from Get
	FailGet error
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tasks: make(map[string]map[string]model.Task),
		feeds: make(map[string]*Feed),
	}
}

// Seed stores tasks without publishing
func (m *MemoryBackend) Seed(userID string, tasks ...model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		m.bucket(userID)[t.ID] = t
	}
}

func (m *MemoryBackend) bucket(userID string) map[string]model.Task {
	b, ok := m.tasks[userID]
	if !ok {
		b = make(map[string]model.Task)
		m.tasks[userID] = b
	}
	return b
}

func (m *MemoryBackend) feed(userID string) *Feed {
	f, ok := m.feeds[userID]
	if !ok {
		f = NewFeed()
		m.feeds[userID] = f
	}
	return f
}

func (m *MemoryBackend) snapshot(userID string) []model.Task {
	out := make([]model.Task, 0, len(m.tasks[userID]))
	for _, t := range m.tasks[userID] {
		out = append(out, t)
	}
	SortByCreated(out)
	return out
}

// publish sends the user's snapshot while m.mu is still held, so
// subscribers see writes in the order they were made
func (m *MemoryBackend) publish(userID string) {
	m.feed(userID).Publish(m.snapshot(userID))
}

// Get returns every task of a user
func (m *MemoryBackend) Get(ctx context.Context, userID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(userID), nil
}

// Set writes a whole record
func (m *MemoryBackend) Set(ctx context.Context, userID string, task model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(userID)[task.ID] = task
	m.publish(userID)
	return nil
}

// Update merges a patch into an existing record
func (m *MemoryBackend) Update(ctx context.Context, userID, taskID string, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailUpdate != nil {
		if err := m.FailUpdate(taskID, patch); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[userID][taskID]
	if !ok {
		return ErrNotFound
	}
	m.tasks[userID][taskID] = patch.Apply(t)
	m.publish(userID)
	return nil
}

// Remove deletes a record; removing a missing id is not an error
func (m *MemoryBackend) Remove(ctx context.Context, userID, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bucket(userID), taskID)
	m.publish(userID)
	return nil
}

// Subscribe streams snapshots for a user, starting with the current one
func (m *MemoryBackend) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, cancel := m.feed(userID).SubscribeWith(m.snapshot(userID))
	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions for a user
func (m *MemoryBackend) Subscribers(userID string) int {
	m.mu.RLock()
	f, ok := m.feeds[userID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return f.Len()
}
