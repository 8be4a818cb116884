package model

import (
	"errors"
	"strings"
	"time"
)

// DayKeyLayout is the canonical YYYY-MM-DD layout used for task dates
const DayKeyLayout = "2006-01-02"

var (
	ErrEmptyText  = errors.New("task text must not be empty")
	ErrBadDayKey  = errors.New("date must be a YYYY-MM-DD day key")
	ErrEmptyPatch = errors.New("patch has no fields")
)

// Task represents a planned item on a single day.
// JSON names match the stored record format and must not change.
type Task struct {
	ID           string `json:"id" yaml:"id"`
	Text         string `json:"text" yaml:"text"`
	Completed    bool   `json:"completed" yaml:"completed"`
	Date         string `json:"date" yaml:"date"`                 // Day the task is currently scheduled on
	OriginalDate string `json:"originalDate" yaml:"originalDate"` // Day the task was created on, never rewritten
	Note         string `json:"note,omitempty" yaml:"note,omitempty"`
	CreatedAt    int64  `json:"createdAt" yaml:"createdAt"` // Unix milliseconds
}

// Carried returns true if the task has been rolled forward from its original day
func (t Task) Carried() bool {
	return t.OriginalDate != "" && t.Date != t.OriginalDate
}

// Patch is a partial update. Nil fields are left untouched.
// There is deliberately no field for ID, OriginalDate or CreatedAt.
type Patch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Date      *string `json:"date,omitempty"`
	Note      *string `json:"note,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Text == nil && p.Completed == nil && p.Date == nil && p.Note == nil
}

// Validate checks the fields that are set
func (p Patch) Validate() error {
	if p.Empty() {
		return ErrEmptyPatch
	}
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return ErrEmptyText
	}
	if p.Date != nil && !ValidDayKey(*p.Date) {
		return ErrBadDayKey
	}
	return nil
}

// Apply returns a copy of t with the patch applied
func (p Patch) Apply(t Task) Task {
	if p.Text != nil {
		t.Text = strings.TrimSpace(*p.Text)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	return t
}

// DatePatch reschedules a task
func DatePatch(key string) Patch {
	return Patch{Date: &key}
}

// CompletedPatch sets the completion state
func CompletedPatch(completed bool) Patch {
	return Patch{Completed: &completed}
}

// NotePatch replaces the note
func NotePatch(note string) Patch {
	return Patch{Note: &note}
}

// ValidDayKey reports whether s is a well formed, zero padded YYYY-MM-DD key
func ValidDayKey(s string) bool {
	if len(s) != len(DayKeyLayout) {
		return false
	}
	_, err := time.Parse(DayKeyLayout, s)
	return err == nil
}
