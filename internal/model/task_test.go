package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWireFieldNames(t *testing.T) {
	task := Task{
		ID:           "abc",
		Text:         "Buy milk",
		Date:         "2024-06-12",
		OriginalDate: "2024-06-10",
		Note:         "2%",
		CreatedAt:    1718000000000,
	}

	b, err := json.Marshal(task)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, k := range []string{"id", "text", "completed", "date", "originalDate", "note", "createdAt"} {
		assert.Contains(t, raw, k)
	}
}

func TestCarried(t *testing.T) {
	assert.False(t, Task{Date: "2024-06-10", OriginalDate: "2024-06-10"}.Carried())
	assert.True(t, Task{Date: "2024-06-12", OriginalDate: "2024-06-10"}.Carried())
	assert.False(t, Task{Date: "2024-06-12"}.Carried())
}

func TestPatchValidate(t *testing.T) {
	blank := "   "
	bad := "2024-6-1"
	good := "2024-06-01"

	assert.ErrorIs(t, Patch{}.Validate(), ErrEmptyPatch)
	assert.ErrorIs(t, Patch{Text: &blank}.Validate(), ErrEmptyText)
	assert.ErrorIs(t, Patch{Date: &bad}.Validate(), ErrBadDayKey)
	assert.NoError(t, Patch{Date: &good}.Validate())
	assert.NoError(t, CompletedPatch(false).Validate())
}

func TestPatchApplyLeavesIdentityAlone(t *testing.T) {
	orig := Task{ID: "x", Text: "a", Date: "2024-06-10", OriginalDate: "2024-06-10", CreatedAt: 5}

	got := DatePatch("2024-06-12").Apply(orig)
	assert.Equal(t, "2024-06-12", got.Date)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.OriginalDate, got.OriginalDate)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.Equal(t, "2024-06-10", orig.Date)
}

func TestValidDayKey(t *testing.T) {
	assert.True(t, ValidDayKey("2024-02-29"))
	assert.False(t, ValidDayKey("2023-02-29"))
	assert.False(t, ValidDayKey("24-02-01"))
	assert.False(t, ValidDayKey(""))
}
