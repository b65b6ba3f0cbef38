package domain

import "errors"

// Task is a single persisted to-do record.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// ErrTaskNotFound is returned when no task carries the requested id.
var ErrTaskNotFound = errors.New("task not found")

// IndexOf returns the position of the first task with the given id, or -1.
func IndexOf(tasks []Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Without returns the tasks whose id differs from id, preserving order.
func Without(tasks []Task, id int64) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
