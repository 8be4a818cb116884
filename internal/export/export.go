// Package export writes a user's tasks as JSON or YAML.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dori/weekplan/internal/calendar"
	"github.com/dori/weekplan/internal/model"
	"github.com/dori/weekplan/internal/taskstore"
)

// Formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Document is the exported file
type Document struct {
	User       string       `json:"user" yaml:"user"`
	ExportedAt string       `json:"exportedAt" yaml:"exportedAt"`
	From       string       `json:"from,omitempty" yaml:"from,omitempty"`
	To         string       `json:"to,omitempty" yaml:"to,omitempty"`
	Tasks      []model.Task `json:"tasks" yaml:"tasks"`
}

// NewDocument builds a document for tasks. A zero from means every task;
// otherwise only the week starting at from is kept.
func NewDocument(user string, tasks []model.Task, now, from time.Time) Document {
	doc := Document{
		User:       user,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Tasks:      tasks,
	}
	if !from.IsZero() {
		doc.From = calendar.DayKey(from)
		doc.To = calendar.DayKey(calendar.WeekEnd(from))
		doc.Tasks = taskstore.TasksInRange(tasks, doc.From, doc.To)
	}
	if doc.Tasks == nil {
		doc.Tasks = []model.Task{}
	}
	return doc
}

// Write encodes doc to w in format
func Write(w io.Writer, format string, doc Document) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q (want json or yaml)", format)
	}
}

// Read decodes a document written by Write
func Read(r io.Reader, format string) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML, "yml":
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		err = fmt.Errorf("unknown export format %q (want json or yaml)", format)
	}
	return doc, err
}
