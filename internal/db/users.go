package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when no user has the requested name or id
var ErrUserNotFound = errors.New("user not found")

// User is a stored account
type User struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// CreateUser stores a new account with an already hashed password
func (db *DB) CreateUser(ctx context.Context, name, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	_, err := db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, password_hash, created_at)
		VALUES (:id, :name, :password_hash, :created_at)
	`, u)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByName looks an account up by its sign-in name
func (db *DB) GetUserByName(ctx context.Context, name string) (*User, error) {
	var u User
	err := db.GetContext(ctx, &u, `
		SELECT id, name, password_hash, created_at FROM users WHERE name = ?
	`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser looks an account up by id
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := db.GetContext(ctx, &u, `
		SELECT id, name, password_hash, created_at FROM users WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
