package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

// taskRow mirrors the tasks table
type taskRow struct {
	UserID       string `db:"user_id"`
	ID           string `db:"id"`
	Text         string `db:"text"`
	Completed    int    `db:"completed"`
	Date         string `db:"date"`
	OriginalDate string `db:"original_date"`
	Note         string `db:"note"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r taskRow) task() model.Task {
	return model.Task{
		ID:           r.ID,
		Text:         r.Text,
		Completed:    r.Completed != 0,
		Date:         r.Date,
		OriginalDate: r.OriginalDate,
		Note:         r.Note,
		CreatedAt:    r.CreatedAt,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ taskstore.Backend     = (*DB)(nil)
	_ taskstore.RangeReader = (*DB)(nil)
)

// Get returns all tasks of a user, oldest first
func (db *DB) Get(ctx context.Context, userID string) ([]model.Task, error) {
	var rows []taskRow
	err := db.SelectContext(ctx, &rows, `
		SELECT user_id, id, text, completed, date, original_date, note,
		       created_at, updated_at
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.task()
	}
	return tasks, nil
}

// GetTasksForRange returns a user's tasks dated within [from, to]
func (db *DB) GetTasksForRange(ctx context.Context, userID, from, to string) ([]model.Task, error) {
	var rows []taskRow
	err := db.SelectContext(ctx, &rows, `
		SELECT user_id, id, text, completed, date, original_date, note,
		       created_at, updated_at
		FROM tasks
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date, created_at, id
	`, userID, from, to)
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.task()
	}
	return tasks, nil
}

// Set inserts a task, or overwrites its mutable fields if it already exists.
// original_date and created_at are only written on insert.
func (db *DB) Set(ctx context.Context, userID string, task model.Task) error {
	row := taskRow{
		UserID:       userID,
		ID:           task.ID,
		Text:         task.Text,
		Completed:    boolToInt(task.Completed),
		Date:         task.Date,
		OriginalDate: task.OriginalDate,
		Note:         task.Note,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    nowMillis(),
	}

	_, err := db.NamedExecContext(ctx, `
		INSERT INTO tasks (user_id, id, text, completed, date, original_date, note, created_at, updated_at)
		VALUES (:user_id, :id, :text, :completed, :date, :original_date, :note, :created_at, :updated_at)
		ON CONFLICT(user_id, id) DO UPDATE SET
			text = excluded.text,
			completed = excluded.completed,
			date = excluded.date,
			note = excluded.note,
			updated_at = excluded.updated_at
	`, row)
	if err != nil {
		return err
	}

	db.notify(ctx, userID)
	return nil
}

// Update applies the non-nil fields of patch to an existing task
func (db *DB) Update(ctx context.Context, userID, taskID string, patch model.Patch) error {
	var (
		sets []string
		args []interface{}
	)
	if patch.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, strings.TrimSpace(*patch.Text))
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *patch.Date)
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if len(sets) == 0 {
		return model.ErrEmptyPatch
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowMillis(), userID, taskID)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE user_id = ? AND id = ?", strings.Join(sets, ", "))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return taskstore.ErrNotFound
	}

	db.notify(ctx, userID)
	return nil
}

// Remove deletes a task. Deleting a missing task is not an error.
func (db *DB) Remove(ctx context.Context, userID, taskID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)
	if err != nil {
		return err
	}

	db.notify(ctx, userID)
	return nil
}
