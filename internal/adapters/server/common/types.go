// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// ErrInvalidRequest reports malformed or invalid transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrServiceUnavailable reports a missing backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// ListTasksRequest captures list filters for task records.
type ListTasksRequest struct {
	Board  string
	Status string
}

// CreateTaskRequest captures input for new task records.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Board       string `json:"board,omitempty"`
}

// PatchTaskRequest captures a partial task update. Nil fields are left unchanged.
type PatchTaskRequest struct {
	ID          int     `json:"-"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Board       *string `json:"board,omitempty"`
}

// PutTaskRequest captures a full task replacement.
type PutTaskRequest struct {
	ID          int    `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Board       string `json:"board"`
}

// SelectBoardRequest captures a new active board.
type SelectBoardRequest struct {
	Board string `json:"board"`
}

// BoardColumn is one status column of the board state.
type BoardColumn struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Tasks []domain.Task `json:"tasks"`
}

// BoardState is the active board projection returned to HTTP and MCP callers.
type BoardState struct {
	Boards         []string      `json:"boards"`
	ActiveBoard    string        `json:"active_board"`
	Columns        []BoardColumn `json:"columns"`
	Orphans        []domain.Task `json:"orphans,omitempty"`
	SidebarVisible bool          `json:"sidebar_visible"`
	LightTheme     bool          `json:"light_theme"`
}

// TaskService captures task operations exposed by app services.
type TaskService interface {
	ListTasks(context.Context, ListTasksRequest) ([]domain.Task, error)
	GetTask(context.Context, int) (domain.Task, error)
	CreateTask(context.Context, CreateTaskRequest) (domain.Task, error)
	PatchTask(context.Context, PatchTaskRequest) (domain.Task, error)
	PutTask(context.Context, PutTaskRequest) (domain.Task, error)
	DeleteTask(context.Context, int) error
}

// BoardService captures board projection and selection operations.
type BoardService interface {
	ListBoards(context.Context) ([]string, error)
	BoardState(context.Context) (BoardState, error)
	SelectBoard(context.Context, SelectBoardRequest) (BoardState, error)
}

// SnapshotReader exports the full portable state.
type SnapshotReader interface {
	Snapshot(context.Context) (app.Snapshot, error)
}
