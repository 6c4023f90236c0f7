package domain

import (
	"strings"
)

// Status identifies the workflow column a task sits in.
type Status string

// StatusTodo and related constants define the default workflow columns.
const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// NormalizeStatus lowercases and trims a status identifier.
func NormalizeStatus(s Status) Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// Column represents one rendered status column.
type Column struct {
	Status Status
	Name   string
}

// NewColumn constructs a column definition.
func NewColumn(status Status, name string) (Column, error) {
	status = NormalizeStatus(status)
	name = strings.TrimSpace(name)
	if status == "" {
		return Column{}, ErrInvalidStatus
	}
	if name == "" {
		name = strings.ToUpper(string(status))
	}
	return Column{Status: status, Name: name}, nil
}

// DefaultColumns returns the todo/doing/done column set.
func DefaultColumns() []Column {
	return []Column{
		{Status: StatusTodo, Name: "TODO"},
		{Status: StatusDoing, Name: "DOING"},
		{Status: StatusDone, Name: "DONE"},
	}
}

// ColumnStatuses lists the status identifiers of the supplied columns in order.
func ColumnStatuses(columns []Column) []Status {
	out := make([]Status, 0, len(columns))
	for _, column := range columns {
		out = append(out, column.Status)
	}
	return out
}
