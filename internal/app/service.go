package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/kanboard/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Columns           []domain.Column
	DefaultLightTheme bool
}

// Service coordinates the task store, preferences and the board projection.
type Service struct {
	store        *TaskStore
	prefs        *Preferences
	logger       Logger
	clock        Clock
	columns      []domain.Column
	defaultLight bool

	orphanMu    sync.Mutex
	lastOrphans string
}

// BoardColumn is one rendered status column and its cards.
type BoardColumn struct {
	Column domain.Column
	Tasks  []domain.Task
}

// BoardView is everything needed to render the active board.
type BoardView struct {
	Boards         []string
	ActiveBoard    string
	Columns        []BoardColumn
	Orphans        []domain.Task
	SidebarVisible bool
	LightTheme     bool
}

// NewService constructs a new value for this package.
func NewService(storage Storage, logger Logger, clock Clock, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = nopLogger{}
	}
	if clock == nil {
		clock = time.Now
	}
	columns := sanitizeColumns(cfg.Columns)
	if len(columns) == 0 {
		columns = domain.DefaultColumns()
	}
	return &Service{
		store:        NewTaskStore(storage, logger),
		prefs:        NewPreferences(storage, logger),
		logger:       logger,
		clock:        clock,
		columns:      columns,
		defaultLight: cfg.DefaultLightTheme,
	}
}

// Columns returns the configured status columns in display order.
func (s *Service) Columns() []domain.Column {
	return append([]domain.Column(nil), s.columns...)
}

// InitializeData seeds the store on first run. It reports whether seeding happened.
func (s *Service) InitializeData(ctx context.Context) (bool, error) {
	initialized, err := s.store.Initialized(ctx)
	if err != nil {
		return false, err
	}
	if initialized {
		s.logger.Debug("data already exists in storage")
		return false, nil
	}
	seed := domain.InitialTasks()
	if err := s.store.ReplaceAll(ctx, seed); err != nil {
		return false, fmt.Errorf("seed tasks: %w", err)
	}
	if err := s.prefs.SetSidebarVisible(ctx, true); err != nil {
		return false, fmt.Errorf("seed sidebar flag: %w", err)
	}
	s.logger.Info("storage seeded", "tasks", len(seed))
	return true, nil
}

// ListTasks returns every stored task.
func (s *Service) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.store.GetTasks(ctx)
}

// GetTask returns one task by id.
func (s *Service) GetTask(ctx context.Context, id int) (domain.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListBoards returns the distinct board names in first-seen order.
func (s *Service) ListBoards(ctx context.Context) ([]string, error) {
	tasks, err := s.store.GetTasks(ctx)
	if err != nil {
		return nil, err
	}
	return domain.DistinctBoards(tasks), nil
}

// ActiveBoard resolves the board that should be displayed.
func (s *Service) ActiveBoard(ctx context.Context) (string, error) {
	boards, err := s.ListBoards(ctx)
	if err != nil {
		return "", err
	}
	return s.resolveActiveBoard(ctx, boards)
}

// LoadBoard reads the store and projects the active board into columns.
func (s *Service) LoadBoard(ctx context.Context) (BoardView, error) {
	tasks, err := s.store.GetTasks(ctx)
	if err != nil {
		return BoardView{}, err
	}
	boards := domain.DistinctBoards(tasks)
	active, err := s.resolveActiveBoard(ctx, boards)
	if err != nil {
		return BoardView{}, err
	}
	sidebar, err := s.prefs.SidebarVisible(ctx)
	if err != nil {
		return BoardView{}, err
	}
	light, err := s.prefs.LightTheme(ctx, s.defaultLight)
	if err != nil {
		return BoardView{}, err
	}

	view := BoardView{
		Boards:         boards,
		ActiveBoard:    active,
		Columns:        make([]BoardColumn, 0, len(s.columns)),
		SidebarVisible: sidebar,
		LightTheme:     light,
	}
	byStatus, orphans := domain.PartitionByStatus(tasks, active, domain.ColumnStatuses(s.columns))
	for _, column := range s.columns {
		view.Columns = append(view.Columns, BoardColumn{Column: column, Tasks: byStatus[column.Status]})
	}
	s.reportOrphans(active, orphans)
	view.Orphans = orphans
	return view, nil
}

// reportOrphans warns about orphaned tasks when the set differs from the previous load.
func (s *Service) reportOrphans(board string, orphans []domain.Task) {
	var sig strings.Builder
	sig.WriteString(board)
	for _, orphan := range orphans {
		fmt.Fprintf(&sig, "|%d:%s", orphan.ID, orphan.Status)
	}
	s.orphanMu.Lock()
	changed := sig.String() != s.lastOrphans
	s.lastOrphans = sig.String()
	s.orphanMu.Unlock()
	if !changed {
		return
	}
	for _, orphan := range orphans {
		s.logger.Warn("column not found for status", "status", orphan.Status, "task_id", orphan.ID, "board", board)
	}
}

// SelectBoard persists a new active board.
func (s *Service) SelectBoard(ctx context.Context, board string) error {
	board = strings.TrimSpace(board)
	boards, err := s.ListBoards(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(boards, board) {
		return ErrUnknownBoard
	}
	return s.prefs.SetActiveBoard(ctx, board)
}

// CreateTask stores a new task. An empty board defaults to the active board.
func (s *Service) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	if strings.TrimSpace(in.Board) == "" {
		active, err := s.ActiveBoard(ctx)
		if err != nil {
			return domain.Task{}, err
		}
		in.Board = active
	}
	if err := s.checkStatus(in.Status); err != nil {
		return domain.Task{}, err
	}
	task, err := s.store.CreateTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Debug("task created", "task_id", task.ID, "board", task.Board, "status", task.Status)
	return task, nil
}

// SaveTaskChanges patches the fields editable from the edit form.
func (s *Service) SaveTaskChanges(ctx context.Context, id int, title, description string, status domain.Status) (domain.Task, error) {
	return s.PatchTask(ctx, id, domain.TaskPatch{
		Title:       &title,
		Description: &description,
		Status:      &status,
	})
}

// PatchTask merges supplied fields over one task.
func (s *Service) PatchTask(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error) {
	if patch.Status != nil {
		if err := s.checkStatus(*patch.Status); err != nil {
			return domain.Task{}, err
		}
	}
	task, err := s.store.PatchTask(ctx, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Debug("task patched", "task_id", id)
	return task, nil
}

// PutTask replaces one task record.
func (s *Service) PutTask(ctx context.Context, id int, in domain.TaskInput) (domain.Task, error) {
	if err := s.checkStatus(in.Status); err != nil {
		return domain.Task{}, err
	}
	task, err := s.store.PutTask(ctx, id, in)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Debug("task replaced", "task_id", id)
	return task, nil
}

// DeleteTask removes one task.
func (s *Service) DeleteTask(ctx context.Context, id int) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("task deleted", "task_id", id)
	return nil
}

// ToggleSidebar persists sidebar visibility.
func (s *Service) ToggleSidebar(ctx context.Context, show bool) error {
	return s.prefs.SetSidebarVisible(ctx, show)
}

// ToggleTheme flips the stored theme and returns whether light is now active.
func (s *Service) ToggleTheme(ctx context.Context) (bool, error) {
	light, err := s.prefs.LightTheme(ctx, s.defaultLight)
	if err != nil {
		return false, err
	}
	if err := s.prefs.SetLightTheme(ctx, !light); err != nil {
		return false, err
	}
	return !light, nil
}

// resolveActiveBoard keeps the persisted choice while it still has tasks.
func (s *Service) resolveActiveBoard(ctx context.Context, boards []string) (string, error) {
	if len(boards) == 0 {
		return "", nil
	}
	stored, err := s.prefs.ActiveBoard(ctx)
	if err != nil {
		return "", err
	}
	if stored != "" && slices.Contains(boards, stored) {
		return stored, nil
	}
	return boards[0], nil
}

// checkStatus rejects statuses with no configured column.
func (s *Service) checkStatus(status domain.Status) error {
	status = domain.NormalizeStatus(status)
	if status == "" {
		return domain.ErrInvalidStatus
	}
	for _, column := range s.columns {
		if column.Status == status {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
}

// sanitizeColumns normalizes and de-duplicates configured columns.
func sanitizeColumns(in []domain.Column) []domain.Column {
	out := make([]domain.Column, 0, len(in))
	seen := map[domain.Status]struct{}{}
	for _, raw := range in {
		column, err := domain.NewColumn(raw.Status, raw.Name)
		if err != nil {
			continue
		}
		if _, ok := seen[column.Status]; ok {
			continue
		}
		seen[column.Status] = struct{}{}
		out = append(out, column)
	}
	return out
}
