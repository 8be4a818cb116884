package taskstore

import (
	"sync"

	"github.com/dori/weekplan/internal/model"
)

// Feed fans full snapshots out to subscribers. Each subscriber channel holds
// at most one pending snapshot; a newer publish replaces an unread one.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan []model.Task
	nextID int
	closed bool
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan []model.Task)}
}

// Subscribe registers a subscriber. The returned func unregisters it and
// closes the channel; calling it more than once is safe.
func (f *Feed) Subscribe() (<-chan []model.Task, func()) {
	return f.subscribe(nil, false)
}

// SubscribeWith registers a subscriber whose channel already holds initial.
// A publish that races with it replaces initial, never the other way round.
func (f *Feed) SubscribeWith(initial []model.Task) (<-chan []model.Task, func()) {
	return f.subscribe(initial, true)
}

func (f *Feed) subscribe(initial []model.Task, seed bool) (<-chan []model.Task, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan []model.Task, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	if seed {
		snapshot := make([]model.Task, len(initial))
		copy(snapshot, initial)
		ch <- snapshot
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers a copy of tasks to every subscriber without blocking
func (f *Feed) Publish(tasks []model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		snapshot := make([]model.Task, len(tasks))
		copy(snapshot, tasks)

		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Drop the unread snapshot, the new one supersedes it
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Len returns the number of active subscribers
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscriber channel
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	f.closed = true
}
