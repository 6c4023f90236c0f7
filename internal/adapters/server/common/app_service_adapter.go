package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service task and board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListTasks lists tasks, optionally filtered by board and status.
func (a *AppServiceAdapter) ListTasks(ctx context.Context, in ListTasksRequest) ([]domain.Task, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	tasks, err := a.service.ListTasks(ctx)
	if err != nil {
		return nil, mapAppError("list tasks", err)
	}
	board := strings.TrimSpace(in.Board)
	status := domain.NormalizeStatus(domain.Status(in.Status))
	out := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if board != "" && task.Board != board {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

// GetTask returns one task by id.
func (a *AppServiceAdapter) GetTask(ctx context.Context, id int) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	if id <= 0 {
		return domain.Task{}, fmt.Errorf("id must be positive: %w", ErrInvalidRequest)
	}
	task, err := a.service.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, mapAppError("get task", err)
	}
	return task, nil
}

// CreateTask creates one task through app-level APIs.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.CreateTask(ctx, domain.TaskInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.Status(in.Status),
		Board:       in.Board,
	})
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	return task, nil
}

// PatchTask merges the supplied fields over one task.
func (a *AppServiceAdapter) PatchTask(ctx context.Context, in PatchTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	if in.ID <= 0 {
		return domain.Task{}, fmt.Errorf("id must be positive: %w", ErrInvalidRequest)
	}
	patch := domain.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		Board:       in.Board,
	}
	if in.Status != nil {
		status := domain.Status(*in.Status)
		patch.Status = &status
	}
	if patch.IsEmpty() {
		return domain.Task{}, fmt.Errorf("patch must set at least one field: %w", ErrInvalidRequest)
	}
	task, err := a.service.PatchTask(ctx, in.ID, patch)
	if err != nil {
		return domain.Task{}, mapAppError("patch task", err)
	}
	return task, nil
}

// PutTask replaces one task record.
func (a *AppServiceAdapter) PutTask(ctx context.Context, in PutTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	if in.ID <= 0 {
		return domain.Task{}, fmt.Errorf("id must be positive: %w", ErrInvalidRequest)
	}
	task, err := a.service.PutTask(ctx, in.ID, domain.TaskInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.Status(in.Status),
		Board:       in.Board,
	})
	if err != nil {
		return domain.Task{}, mapAppError("put task", err)
	}
	return task, nil
}

// DeleteTask removes one task.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, id int) error {
	if err := a.ready(); err != nil {
		return err
	}
	if id <= 0 {
		return fmt.Errorf("id must be positive: %w", ErrInvalidRequest)
	}
	return mapAppError("delete task", a.service.DeleteTask(ctx, id))
}

// ListBoards returns the distinct board names in first-seen order.
func (a *AppServiceAdapter) ListBoards(ctx context.Context) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	boards, err := a.service.ListBoards(ctx)
	if err != nil {
		return nil, mapAppError("list boards", err)
	}
	return boards, nil
}

// BoardState returns the active board projection.
func (a *AppServiceAdapter) BoardState(ctx context.Context) (BoardState, error) {
	if err := a.ready(); err != nil {
		return BoardState{}, err
	}
	view, err := a.service.LoadBoard(ctx)
	if err != nil {
		return BoardState{}, mapAppError("load board", err)
	}
	return mapBoardView(view), nil
}

// SelectBoard persists a new active board and returns the resulting projection.
func (a *AppServiceAdapter) SelectBoard(ctx context.Context, in SelectBoardRequest) (BoardState, error) {
	if err := a.ready(); err != nil {
		return BoardState{}, err
	}
	board := strings.TrimSpace(in.Board)
	if board == "" {
		return BoardState{}, fmt.Errorf("board is required: %w", ErrInvalidRequest)
	}
	if err := a.service.SelectBoard(ctx, board); err != nil {
		return BoardState{}, mapAppError("select board", err)
	}
	return a.BoardState(ctx)
}

// Snapshot exports the full portable state.
func (a *AppServiceAdapter) Snapshot(ctx context.Context) (app.Snapshot, error) {
	if err := a.ready(); err != nil {
		return app.Snapshot{}, err
	}
	snap, err := a.service.ExportSnapshot(ctx)
	if err != nil {
		return app.Snapshot{}, mapAppError("export snapshot", err)
	}
	return snap, nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return nil
}

// mapBoardView converts one app projection into the transport shape.
func mapBoardView(view app.BoardView) BoardState {
	out := BoardState{
		Boards:         append([]string{}, view.Boards...),
		ActiveBoard:    view.ActiveBoard,
		Columns:        make([]BoardColumn, 0, len(view.Columns)),
		Orphans:        view.Orphans,
		SidebarVisible: view.SidebarVisible,
		LightTheme:     view.LightTheme,
	}
	for _, column := range view.Columns {
		tasks := column.Tasks
		if tasks == nil {
			tasks = []domain.Task{}
		}
		out.Columns = append(out.Columns, BoardColumn{
			ID:    string(column.Column.Status),
			Name:  column.Column.Name,
			Tasks: tasks,
		})
	}
	return out
}

// mapAppError maps app and domain errors into transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound), errors.Is(err, app.ErrUnknownBoard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidBoard),
		errors.Is(err, app.ErrUnknownStatus),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
