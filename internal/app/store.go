package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/evanschultz/kanboard/internal/domain"
)

// Storage keys shared by every driver.
const (
	KeyTasks       = "tasks"
	KeyActiveBoard = "activeBoard"
	KeyShowSidebar = "showSideBar"
	KeyLightTheme  = "light-theme"
	KeyTaskSeq     = "taskSeq"
)

// firstTaskID is assigned when the store holds no tasks and no id was ever issued.
const firstTaskID = 1

// TaskStore keeps the flat task list under one storage key.
// Every mutation rewrites the whole list.
type TaskStore struct {
	storage Storage
	logger  Logger
	mu      sync.Mutex
}

// NewTaskStore constructs a task store over storage.
func NewTaskStore(storage Storage, logger Logger) *TaskStore {
	if logger == nil {
		logger = nopLogger{}
	}
	return &TaskStore{storage: storage, logger: logger}
}

// GetTasks returns the persisted list, or an empty list when uninitialized or malformed.
func (s *TaskStore) GetTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, _, err := s.readTasks(ctx)
	return tasks, err
}

// Initialized reports whether the tasks key has ever been written.
func (s *TaskStore) Initialized(ctx context.Context) (bool, error) {
	_, ok, err := s.storage.GetItem(ctx, KeyTasks)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", KeyTasks, err)
	}
	return ok, nil
}

// GetTask returns one task by id.
func (s *TaskStore) GetTask(ctx context.Context, id int) (domain.Task, error) {
	tasks, err := s.GetTasks(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	return tasks[idx], nil
}

// CreateTask assigns the next id, appends the task and persists the list.
func (s *TaskStore) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, _, err := s.readTasks(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	id, err := s.nextID(ctx, tasks)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := domain.NewTask(id, in)
	if err != nil {
		return domain.Task{}, err
	}
	tasks = append(tasks, task)
	if err := s.writeTasks(ctx, tasks); err != nil {
		return domain.Task{}, err
	}
	if err := s.writeSeq(ctx, id); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// PatchTask merges the supplied fields over the stored task.
func (s *TaskStore) PatchTask(ctx context.Context, id int, patch domain.TaskPatch) (domain.Task, error) {
	return s.mutate(ctx, id, func(task *domain.Task) error {
		return task.ApplyPatch(patch)
	})
}

// PutTask replaces every mutable field of the stored task.
func (s *TaskStore) PutTask(ctx context.Context, id int, in domain.TaskInput) (domain.Task, error) {
	return s.mutate(ctx, id, func(task *domain.Task) error {
		replaced, err := domain.NewTask(id, in)
		if err != nil {
			return err
		}
		*task = replaced
		return nil
	})
}

// DeleteTask removes one task and persists the remaining list.
func (s *TaskStore) DeleteTask(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, _, err := s.readTasks(ctx)
	if err != nil {
		return err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return ErrNotFound
	}
	tasks = slices.Delete(tasks, idx, idx+1)
	return s.writeTasks(ctx, tasks)
}

// ReplaceAll overwrites the stored list. The id high-water mark never moves backwards.
func (s *TaskStore) ReplaceAll(ctx context.Context, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]struct{}, len(tasks))
	for _, task := range tasks {
		if _, ok := seen[task.ID]; ok {
			return fmt.Errorf("duplicate task id %d: %w", task.ID, domain.ErrInvalidID)
		}
		seen[task.ID] = struct{}{}
	}
	seq, err := s.readSeq(ctx)
	if err != nil {
		return err
	}
	if err := s.writeTasks(ctx, tasks); err != nil {
		return err
	}
	return s.writeSeq(ctx, max(seq, domain.MaxTaskID(tasks)))
}

// mutate applies fn to one stored task under the store lock and persists the result.
func (s *TaskStore) mutate(ctx context.Context, id int, fn func(*domain.Task) error) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, _, err := s.readTasks(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return domain.Task{}, ErrNotFound
	}
	task := tasks[idx]
	if err := fn(&task); err != nil {
		return domain.Task{}, err
	}
	tasks[idx] = task
	if err := s.writeTasks(ctx, tasks); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// readTasks decodes the stored list. Malformed JSON degrades to an empty list.
func (s *TaskStore) readTasks(ctx context.Context) ([]domain.Task, bool, error) {
	raw, ok, err := s.storage.GetItem(ctx, KeyTasks)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", KeyTasks, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []domain.Task{}, ok, nil
	}
	var tasks []domain.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		s.logger.Warn("stored task list is malformed, treating as empty", "key", KeyTasks, "err", err)
		return []domain.Task{}, ok, nil
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, ok, nil
}

// writeTasks encodes and persists the full list.
func (s *TaskStore) writeTasks(ctx context.Context, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyTasks, err)
	}
	if err := s.storage.SetItem(ctx, KeyTasks, string(encoded)); err != nil {
		return fmt.Errorf("write %s: %w", KeyTasks, err)
	}
	return nil
}

// nextID returns one more than the highest id ever issued or currently stored.
func (s *TaskStore) nextID(ctx context.Context, tasks []domain.Task) (int, error) {
	seq, err := s.readSeq(ctx)
	if err != nil {
		return 0, err
	}
	highest := max(seq, domain.MaxTaskID(tasks))
	if highest < firstTaskID {
		return firstTaskID, nil
	}
	return highest + 1, nil
}

// readSeq loads the id high-water mark; missing or malformed values count as zero.
func (s *TaskStore) readSeq(ctx context.Context) (int, error) {
	raw, ok, err := s.storage.GetItem(ctx, KeyTaskSeq)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", KeyTaskSeq, err)
	}
	if !ok {
		return 0, nil
	}
	seq, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seq < 0 {
		s.logger.Warn("stored task sequence is malformed, ignoring", "key", KeyTaskSeq, "value", raw)
		return 0, nil
	}
	return seq, nil
}

// writeSeq persists the id high-water mark.
func (s *TaskStore) writeSeq(ctx context.Context, seq int) error {
	if err := s.storage.SetItem(ctx, KeyTaskSeq, strconv.Itoa(seq)); err != nil {
		return fmt.Errorf("write %s: %w", KeyTaskSeq, err)
	}
	return nil
}

// indexOfTask returns the slice index for id, or -1.
func indexOfTask(tasks []domain.Task, id int) int {
	return slices.IndexFunc(tasks, func(task domain.Task) bool {
		return task.ID == id
	})
}
