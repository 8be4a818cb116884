// Package app wires configuration, storage, identity and the task store
// into one handle shared by the TUI and the CLI subcommands.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"github.com/gofrs/flock"
	"go.uber.org/multierr"

	"github.com/dori/weekplan/internal/auth"
	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/config"
	"github.com/dori/weekplan/internal/db"
	"github.com/dori/weekplan/internal/reconcile"
	"github.com/dori/weekplan/internal/redisstore"
	"github.com/dori/weekplan/internal/taskstore"
)

// App holds the application state and dependencies
type App struct {
	Config  *config.Config
	DB      *db.DB
	Backend taskstore.Backend
	Auth    *auth.Provider
	Tasks   *taskstore.Store
	Clock   calendar.Clock

	lockFile *flock.Flock
	redis    *redisstore.Store
}

type options struct {
	lock  bool
	watch bool
	ring  keyring.Keyring
	clock calendar.Clock
}

// Option configures New
type Option func(*options)

// WithLock takes the single-instance lock. The TUI uses it; one-shot
// subcommands do not.
func WithLock() Option {
	return func(o *options) { o.lock = true }
}

// WithWatch republishes writes made by other processes to the SQLite file
func WithWatch() Option {
	return func(o *options) { o.watch = true }
}

// WithKeyring replaces the on-disk session keyring
func WithKeyring(ring keyring.Keyring) Option {
	return func(o *options) { o.ring = ring }
}

// WithClock overrides the clock used for task timestamps and carry-forward
func WithClock(c calendar.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a new application instance
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{clock: calendar.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &App{Config: cfg, Clock: o.clock}

	if o.lock {
		if err := a.acquireLock(); err != nil {
			return nil, err
		}
	}

	// Accounts always live in SQLite, whatever holds the tasks
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		a.releaseLock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = database

	if err := a.openBackend(ctx, o); err != nil {
		a.Close()
		return nil, err
	}

	ring := o.ring
	if ring == nil {
		ring, err = auth.OpenKeyring(cfg.KeyringDir(), cfg.Keyring == config.KeyringFile)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Auth = auth.NewProvider(database, ring)
	a.Tasks = taskstore.New(a.Backend, a.Auth, taskstore.WithClock(o.clock))
	return a, nil
}

func (a *App) openBackend(ctx context.Context, o options) error {
	switch a.Config.Backend {
	case config.BackendSQLite:
		a.Backend = a.DB
		if o.watch {
			a.DB.Watch(a.Config.WatchInterval)
		}
	case config.BackendRedis:
		rs, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", a.Config.Redis.Addr, err)
		}
		a.redis = rs
		a.Backend = rs
	case config.BackendMemory:
		a.Backend = taskstore.NewMemoryBackend()
	default:
		return fmt.Errorf("unknown backend %q", a.Config.Backend)
	}
	return nil
}

// NewController creates the reconciliation controller for the TUI
func (a *App) NewController(r reconcile.Renderer) *reconcile.Controller {
	return reconcile.New(a.Auth, a.Tasks, r, reconcile.WithClock(a.Clock))
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func (a *App) acquireLock() error {
	a.lockFile = flock.New(a.Config.LockPath())

	locked, err := a.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !locked {
		return fmt.Errorf("another instance of weekplan is already running")
	}

	return nil
}

// releaseLock releases the file lock
func (a *App) releaseLock() error {
	if a.lockFile == nil {
		return nil
	}
	return a.lockFile.Unlock()
}

// Close cleans up application resources
func (a *App) Close() error {
	var err error

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close redis: %w", cerr))
		}
	}
	if a.DB != nil {
		if cerr := a.DB.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}
	return multierr.Append(err, a.releaseLock())
}
