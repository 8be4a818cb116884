package db

import (
	"embed"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/singleflight"

	"github.com/dori/weekplan/internal/taskstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps the SQL database connection and the change feeds of its subscribers
type DB struct {
	*sqlx.DB

	mu        sync.Mutex
	feeds     map[string]*taskstore.Feed
	loads     singleflight.Group
	loadSeq   atomic.Uint64
	published map[string]uint64

	stopWatch chan struct{}
	watchDone chan struct{}
}

// DefaultDataDir returns the default data directory path
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weekplan"
	}
	return filepath.Join(home, ".local", "share", "weekplan")
}

// DefaultDBPath returns the default database file path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "weekplan.db")
}

// Open opens a database connection and runs migrations
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// WAL lets `weekplan add` write while the TUI holds the database open
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)
	sqlDB, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer. This also keeps PRAGMA data_version
	// meaningful, since it is tracked per connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:        sqlDB,
		feeds:     make(map[string]*taskstore.Feed),
		published: make(map[string]uint64),
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// migrate runs database migrations using embedded SQL files
func (db *DB) migrate() error {
	// Silence goose logging (it corrupts TUI output)
	goose.SetLogger(log.New(io.Discard, "", 0))
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close stops the watcher, ends all subscriptions and closes the connection
func (db *DB) Close() error {
	db.StopWatching()

	db.mu.Lock()
	for uid, f := range db.feeds {
		f.Close()
		delete(db.feeds, uid)
	}
	db.mu.Unlock()

	return db.DB.Close()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
