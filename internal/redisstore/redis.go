// Package redisstore keeps tasks in Redis so several machines can share one
// planner. Each user has a hash of JSON task records and a pub/sub channel
// that is notified after every write.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

const (
	keyPrefix  = "weekplan:users:"
	maxRetries = 5
)

// Config holds the connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements taskstore.Backend on a Redis server
type Store struct {
	rdb *redis.Client
}

var _ taskstore.Backend = (*Store)(nil)

// Open connects and pings the server
func Open(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// New wraps an existing client
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Close closes the client
func (s *Store) Close() error {
	return s.rdb.Close()
}

func tasksKey(userID string) string { return keyPrefix + userID + ":tasks" }
func changedChan(userID string) string { return keyPrefix + userID + ":changed" }

// Get returns every task of a user, oldest first
func (s *Store) Get(ctx context.Context, userID string) ([]model.Task, error) {
	vals, err := s.rdb.HGetAll(ctx, tasksKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(vals))
	for id, raw := range vals {
		var t model.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", id, err)
		}
		tasks = append(tasks, t)
	}
	taskstore.SortByCreated(tasks)
	return tasks, nil
}

// Set writes a whole record. An existing record keeps its originalDate and
// createdAt.
func (s *Store) Set(ctx context.Context, userID string, task model.Task) error {
	key := tasksKey(userID)
	return s.retry(ctx, key, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, task.ID).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var prev model.Task
			if err := json.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("decode task %s: %w", task.ID, err)
			}
			task.OriginalDate = prev.OriginalDate
			task.CreatedAt = prev.CreatedAt
		}
		return s.write(ctx, tx, userID, task)
	})
}

// Update merges a patch into an existing record
func (s *Store) Update(ctx context.Context, userID, taskID string, patch model.Patch) error {
	if patch.Empty() {
		return model.ErrEmptyPatch
	}

	key := tasksKey(userID)
	return s.retry(ctx, key, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, taskID).Bytes()
		if errors.Is(err, redis.Nil) {
			return taskstore.ErrNotFound
		}
		if err != nil {
			return err
		}

		var t model.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decode task %s: %w", taskID, err)
		}
		return s.write(ctx, tx, userID, patch.Apply(t))
	})
}

// Remove deletes a record; removing a missing id is not an error
func (s *Store) Remove(ctx context.Context, userID, taskID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, tasksKey(userID), taskID)
		p.Publish(ctx, changedChan(userID), taskID)
		return nil
	})
	return err
}

// write stores t and announces the change inside the watched transaction
func (s *Store) write(ctx context.Context, tx *redis.Tx, userID string, t model.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, tasksKey(userID), t.ID, b)
		p.Publish(ctx, changedChan(userID), t.ID)
		return nil
	})
	return err
}

// retry runs fn under WATCH key, retrying when a concurrent writer wins
func (s *Store) retry(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	for i := 0; i < maxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", key, redis.TxFailedErr)
}

// Subscribe streams a user's current task set, then the full set again
// after every change, including changes made by other machines
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, func(), error) {
	ps := s.rdb.Subscribe(ctx, changedChan(userID))
	// Wait for the subscription to be confirmed so no write is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	// Read after confirming: anything written later also arrives as a message
	current, err := s.Get(ctx, userID)
	if err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	feed := taskstore.NewFeed()
	out, unsubscribe := feed.SubscribeWith(current)

	loopCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs := ps.Channel()
		for {
			select {
			case <-loopCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				tasks, err := s.Get(loopCtx, userID)
				if err != nil {
					if loopCtx.Err() == nil {
						log.Printf("redisstore: reload tasks for %s: %v", userID, err)
					}
					continue
				}
				feed.Publish(tasks)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = ps.Close()
			<-done
			unsubscribe()
			feed.Close()
		})
	}
	return out, cancel, nil
}
