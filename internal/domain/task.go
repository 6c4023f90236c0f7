package domain

import (
	"strings"
)

// Task is one card on a board. The JSON shape is the persisted storage layout.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	Board       string `json:"board"`
}

// TaskInput holds the caller-supplied fields of a task.
type TaskInput struct {
	Title       string
	Description string
	Status      Status
	Board       string
}

// TaskPatch holds optional fields merged over an existing task.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Board       *string
}

// NewTask validates input and builds a task carrying the supplied id.
func NewTask(id int, in TaskInput) (Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Board = strings.TrimSpace(in.Board)
	in.Status = NormalizeStatus(in.Status)

	if id <= 0 {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Status == "" {
		return Task{}, ErrInvalidStatus
	}
	if in.Board == "" {
		return Task{}, ErrInvalidBoard
	}

	return Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Board:       in.Board,
	}, nil
}

// ApplyPatch merges non-nil patch fields into the task.
func (t *Task) ApplyPatch(p TaskPatch) error {
	next := *t
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
		if next.Title == "" {
			return ErrInvalidTitle
		}
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		next.Status = NormalizeStatus(*p.Status)
		if next.Status == "" {
			return ErrInvalidStatus
		}
	}
	if p.Board != nil {
		next.Board = strings.TrimSpace(*p.Board)
		if next.Board == "" {
			return ErrInvalidBoard
		}
	}
	*t = next
	return nil
}

// Input returns the task's mutable fields.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Board:       t.Board,
	}
}

// IsEmpty reports whether a patch carries no fields.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Board == nil
}
