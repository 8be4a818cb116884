package db

import (
	"context"
	"log"
	"time"

	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

// DefaultWatchInterval is how often the watcher polls for writes made by
// other processes (for example `weekplan add` while the TUI is running)
const DefaultWatchInterval = 2 * time.Second

// Subscribe streams a user's current task set, then the full set again
// after every change
func (db *DB) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	db.mu.Lock()
	f, ok := db.feeds[userID]
	if !ok {
		f = taskstore.NewFeed()
		db.feeds[userID] = f
	}
	db.mu.Unlock()

	ch, cancel := f.Subscribe()
	// Registered first, so a write that lands during the load still
	// triggers a publish we receive
	if err := db.reload(ctx, userID, f); err != nil {
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions for a user
func (db *DB) Subscribers(userID string) int {
	db.mu.Lock()
	f, ok := db.feeds[userID]
	db.mu.Unlock()
	if !ok {
		return 0
	}
	return f.Len()
}

type load struct {
	seq   uint64
	tasks []model.Task
}

// notify reloads a user's tasks and publishes them to subscribers.
// Reloads requested while one is in flight share its query; a load that
// started before the latest publish is dropped.
func (db *DB) notify(ctx context.Context, userID string) {
	db.mu.Lock()
	f, ok := db.feeds[userID]
	db.mu.Unlock()
	if !ok || f.Len() == 0 {
		return
	}
	if err := db.reload(ctx, userID, f); err != nil {
		log.Printf("db: reload tasks for %s: %v", userID, err)
	}
}

// reload loads a user's tasks and publishes them to f
func (db *DB) reload(ctx context.Context, userID string, f *taskstore.Feed) error {
	// A load already in flight may predate the write that triggered us
	db.loads.Forget(userID)
	v, err, _ := db.loads.Do(userID, func() (interface{}, error) {
		seq := db.loadSeq.Add(1)
		tasks, err := db.Get(context.WithoutCancel(ctx), userID)
		return load{seq: seq, tasks: tasks}, err
	})
	if err != nil {
		return err
	}

	l := v.(load)
	db.mu.Lock()
	defer db.mu.Unlock()
	if l.seq <= db.published[userID] {
		return nil
	}
	db.published[userID] = l.seq
	f.Publish(l.tasks)
	return nil
}

// notifyAll republishes every user with live subscribers
func (db *DB) notifyAll(ctx context.Context) {
	db.mu.Lock()
	users := make([]string, 0, len(db.feeds))
	for uid, f := range db.feeds {
		if f.Len() > 0 {
			users = append(users, uid)
		}
	}
	db.mu.Unlock()

	for _, uid := range users {
		db.notify(ctx, uid)
	}
}

// dataVersion reads SQLite's data_version, which changes when another
// connection commits to the database file
func (db *DB) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := db.GetContext(ctx, &v, `PRAGMA data_version`)
	return v, err
}

// Watch starts polling for commits from other processes and republishes
// snapshots when one is seen. Calling Watch twice is a no-op.
func (db *DB) Watch(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	db.mu.Lock()
	if db.stopWatch != nil {
		db.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	db.stopWatch, db.watchDone = stop, done
	db.mu.Unlock()

	ctx := context.Background()
	last, err := db.dataVersion(ctx)
	if err != nil {
		log.Printf("db: watch: %v", err)
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				v, err := db.dataVersion(ctx)
				if err != nil {
					log.Printf("db: watch: %v", err)
					continue
				}
				if v != last {
					last = v
					db.notifyAll(ctx)
				}
			}
		}
	}()
}

// StopWatching stops the watcher started by Watch and waits for it to exit
func (db *DB) StopWatching() {
	db.mu.Lock()
	stop, done := db.stopWatch, db.watchDone
	db.stopWatch, db.watchDone = nil, nil
	db.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
