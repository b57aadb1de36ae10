package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

type TaskStatus string

const (
	StatusTodo TaskStatus = "todo"
	StatusDone TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	return s == StatusTodo || s == StatusDone
}

// Toggle flips todo and done; it is its own inverse.
func (s TaskStatus) Toggle() TaskStatus {
	if s == StatusTodo {
		return StatusDone
	}
	return StatusTodo
}

// Task mirrors a tasks document. Description is untrusted HTML at rest.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedBy   string     `json:"createdBy"`
	Team        string     `json:"team"`
	Assignees   []string   `json:"assignees"`
	Status      TaskStatus `json:"status"`
}

func (t Task) IsAssigned(userID string) bool {
	return slices.Contains(t.Assignees, userID)
}

// ToggleAssignee returns a new assignee set with userID removed when
// present and appended when absent. The receiver is not modified.
func (t Task) ToggleAssignee(userID string) []string {
	if t.IsAssigned(userID) {
		return slices.DeleteFunc(slices.Clone(t.Assignees), func(id string) bool { return id == userID })
	}
	return append(slices.Clone(t.Assignees), userID)
}

func DecodeTask(id string, data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("task %s has invalid status %q", id, t.Status)
	}
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	t.ID = id
	return t, nil
}
