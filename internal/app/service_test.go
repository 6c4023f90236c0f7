package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/evanschultz/kanboard/internal/adapters/storage/memory"
	"github.com/evanschultz/kanboard/internal/domain"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}
func (l *recordingLogger) Error(string, ...any) {}

type failingStorage struct {
	err error
}

func (f failingStorage) GetItem(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func (f failingStorage) SetItem(context.Context, string, string) error {
	return f.err
}

func (f failingStorage) RemoveItem(context.Context, string) error {
	return f.err
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	storage := memory.New()
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	return NewService(storage, nil, func() time.Time { return now }, ServiceConfig{}), storage
}

func TestInitializeDataSeedsOnce(t *testing.T) {
	ctx := context.Background()
	svc, storage := newTestService(t)

	seeded, err := svc.InitializeData(ctx)
	if err != nil {
		t.Fatalf("InitializeData() error = %v", err)
	}
	if !seeded {
		t.Fatal("expected first run to seed")
	}
	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if !reflect.DeepEqual(tasks, domain.InitialTasks()) {
		t.Fatalf("unexpected seeded tasks %#v", tasks)
	}
	if v, _, _ := storage.GetItem(ctx, KeyShowSidebar); v != "true" {
		t.Fatalf("expected sidebar flag seeded true, got %q", v)
	}

	if err := svc.DeleteTask(ctx, 1); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	seeded, err = svc.InitializeData(ctx)
	if err != nil {
		t.Fatalf("InitializeData(second) error = %v", err)
	}
	if seeded {
		t.Fatal("expected second run to be a no-op")
	}
	tasks, _ = svc.ListTasks(ctx)
	if len(tasks) != len(domain.InitialTasks())-1 {
		t.Fatalf("expected reseed to be skipped, got %d tasks", len(tasks))
	}
}

func TestInitializeDataSkipsEmptyButInitializedStore(t *testing.T) {
	ctx := context.Background()
	svc, storage := newTestService(t)
	if err := storage.SetItem(ctx, KeyTasks, "[]"); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	seeded, err := svc.InitializeData(ctx)
	if err != nil {
		t.Fatalf("InitializeData() error = %v", err)
	}
	if seeded {
		t.Fatal("expected existing empty list to be kept")
	}
}

func TestLoadBoardPartitionsActiveBoardByStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreate(t, svc, "a-todo", domain.StatusTodo, "A")
	mustCreate(t, svc, "b-todo", domain.StatusTodo, "B")
	mustCreate(t, svc, "a-done", domain.StatusDone, "A")
	mustCreate(t, svc, "a-doing", domain.StatusDoing, "A")

	view, err := svc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if !reflect.DeepEqual(view.Boards, []string{"A", "B"}) {
		t.Fatalf("unexpected boards %#v", view.Boards)
	}
	if view.ActiveBoard != "A" {
		t.Fatalf("expected first board active, got %q", view.ActiveBoard)
	}
	got := map[domain.Status][]string{}
	for _, column := range view.Columns {
		for _, task := range column.Tasks {
			if task.Board != "A" {
				t.Fatalf("task %d from board %q rendered on A", task.ID, task.Board)
			}
			got[column.Column.Status] = append(got[column.Column.Status], task.Title)
		}
	}
	want := map[domain.Status][]string{
		domain.StatusTodo:  {"a-todo"},
		domain.StatusDoing: {"a-doing"},
		domain.StatusDone:  {"a-done"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected partition %#v", got)
	}
}

func TestLoadBoardLogsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	logger := &recordingLogger{}
	svc := NewService(storage, logger, nil, ServiceConfig{})
	raw := `[{"id":1,"title":"x","description":"","status":"blocked","board":"A"},{"id":2,"title":"y","description":"","status":"todo","board":"A"}]`
	if err := storage.SetItem(ctx, KeyTasks, raw); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	view, err := svc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if len(view.Orphans) != 1 || view.Orphans[0].ID != 1 {
		t.Fatalf("unexpected orphans %#v", view.Orphans)
	}
	if len(logger.warnings) != 1 {
		t.Fatalf("expected one warning, got %#v", logger.warnings)
	}
	if len(view.Columns[0].Tasks) != 1 {
		t.Fatalf("expected todo column to keep rendering, got %#v", view.Columns[0].Tasks)
	}
}

func TestLoadBoardWarnsOnlyWhenOrphansChange(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	logger := &recordingLogger{}
	svc := NewService(storage, logger, nil, ServiceConfig{})
	raw := `[{"id":1,"title":"x","description":"","status":"blocked","board":"A"}]`
	if err := storage.SetItem(ctx, KeyTasks, raw); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	for range 3 {
		if _, err := svc.LoadBoard(ctx); err != nil {
			t.Fatalf("LoadBoard() error = %v", err)
		}
	}
	if len(logger.warnings) != 1 {
		t.Fatalf("expected repeated loads to warn once, got %#v", logger.warnings)
	}

	raw = `[{"id":1,"title":"x","description":"","status":"blocked","board":"A"},{"id":2,"title":"y","description":"","status":"review","board":"A"}]`
	if err := storage.SetItem(ctx, KeyTasks, raw); err != nil {
		t.Fatalf("SetItem() error = %v", err)
	}
	if _, err := svc.LoadBoard(ctx); err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if len(logger.warnings) != 3 {
		t.Fatalf("expected a changed orphan set to warn for each orphan, got %#v", logger.warnings)
	}
	if _, err := svc.LoadBoard(ctx); err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if len(logger.warnings) != 3 {
		t.Fatalf("expected unchanged orphan set to stay quiet, got %#v", logger.warnings)
	}
}

func TestActiveBoardPersistsAndFallsBack(t *testing.T) {
	ctx := context.Background()
	svc, storage := newTestService(t)
	mustCreate(t, svc, "launch", domain.StatusTodo, "Launch")
	roadmap := mustCreate(t, svc, "roadmap", domain.StatusTodo, "Roadmap")

	if err := svc.SelectBoard(ctx, "Roadmap"); err != nil {
		t.Fatalf("SelectBoard() error = %v", err)
	}
	if v, _, _ := storage.GetItem(ctx, KeyActiveBoard); v != `"Roadmap"` {
		t.Fatalf("expected JSON string persisted, got %q", v)
	}

	reloaded := NewService(storage, nil, nil, ServiceConfig{})
	view, err := reloaded.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if view.ActiveBoard != "Roadmap" {
		t.Fatalf("expected Roadmap restored, got %q", view.ActiveBoard)
	}

	if err := reloaded.DeleteTask(ctx, roadmap.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	view, err = reloaded.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if view.ActiveBoard != "Launch" {
		t.Fatalf("expected fallback to first board, got %q", view.ActiveBoard)
	}
}

func TestSelectBoardRejectsUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "x", domain.StatusTodo, "A")
	if err := svc.SelectBoard(context.Background(), "Nope"); !errors.Is(err, ErrUnknownBoard) {
		t.Fatalf("expected ErrUnknownBoard, got %v", err)
	}
}

func TestCreateTaskDefaultsToActiveBoard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreate(t, svc, "x", domain.StatusTodo, "A")
	mustCreate(t, svc, "y", domain.StatusTodo, "B")
	if err := svc.SelectBoard(ctx, "B"); err != nil {
		t.Fatalf("SelectBoard() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, domain.TaskInput{Title: "z", Status: domain.StatusDoing})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.Board != "B" {
		t.Fatalf("expected active board B, got %q", task.Board)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: "x", Status: "review", Board: "A"}); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: " ", Status: domain.StatusTodo, Board: "A"}); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: "x", Status: domain.StatusTodo}); !errors.Is(err, domain.ErrInvalidBoard) {
		t.Fatalf("expected ErrInvalidBoard on empty store, got %v", err)
	}
}

func TestPatchTaskExample(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: "X", Status: domain.StatusTodo, Board: "A"}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	done := domain.StatusDone
	if _, err := svc.PatchTask(ctx, 1, domain.TaskPatch{Status: &done}); err != nil {
		t.Fatalf("PatchTask() error = %v", err)
	}
	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	want := []domain.Task{{ID: 1, Board: "A", Status: domain.StatusDone, Title: "X"}}
	if !reflect.DeepEqual(tasks, want) {
		t.Fatalf("unexpected tasks %#v", tasks)
	}
	view, err := svc.LoadBoard(ctx)
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	for _, column := range view.Columns {
		wantCount := 0
		if column.Column.Status == domain.StatusDone {
			wantCount = 1
		}
		if len(column.Tasks) != wantCount {
			t.Fatalf("column %s has %d tasks, want %d", column.Column.Status, len(column.Tasks), wantCount)
		}
	}
}

func TestSaveTaskChangesKeepsBoard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, "X", domain.StatusTodo, "A")
	updated, err := svc.SaveTaskChanges(ctx, created.ID, "Y", " details ", domain.StatusDoing)
	if err != nil {
		t.Fatalf("SaveTaskChanges() error = %v", err)
	}
	want := domain.Task{ID: created.ID, Title: "Y", Description: "details", Status: domain.StatusDoing, Board: "A"}
	if updated != want {
		t.Fatalf("unexpected task %#v", updated)
	}
}

func TestPutTaskReplacesRecord(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, "X", domain.StatusTodo, "A")
	replaced, err := svc.PutTask(ctx, created.ID, domain.TaskInput{Title: "New", Status: domain.StatusDone, Board: "B"})
	if err != nil {
		t.Fatalf("PutTask() error = %v", err)
	}
	if replaced != (domain.Task{ID: created.ID, Title: "New", Status: domain.StatusDone, Board: "B"}) {
		t.Fatalf("unexpected replaced task %#v", replaced)
	}
	if _, err := svc.PutTask(ctx, 99, domain.TaskInput{Title: "x", Status: domain.StatusDone, Board: "B"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMissingTaskMutationsReportNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	title := "x"
	if _, err := svc.PatchTask(ctx, 7, domain.TaskPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on patch, got %v", err)
	}
	if err := svc.DeleteTask(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestToggleSidebarAndTheme(t *testing.T) {
	ctx := context.Background()
	storage := memory.New()
	svc := NewService(storage, nil, nil, ServiceConfig{DefaultLightTheme: true})

	if err := svc.ToggleSidebar(ctx, false); err != nil {
		t.Fatalf("ToggleSidebar() error = %v", err)
	}
	if v, _, _ := storage.GetItem(ctx, KeyShowSidebar); v != "false" {
		t.Fatalf("expected sidebar false, got %q", v)
	}
	light, err := svc.ToggleTheme(ctx)
	if err != nil {
		t.Fatalf("ToggleTheme() error = %v", err)
	}
	if light {
		t.Fatal("expected toggle from default light to dark")
	}
	if v, _, _ := storage.GetItem(ctx, KeyLightTheme); v != "disabled" {
		t.Fatalf("expected light-theme disabled, got %q", v)
	}
	light, err = svc.ToggleTheme(ctx)
	if err != nil || !light {
		t.Fatalf("expected light after second toggle, got %t err=%v", light, err)
	}
}

func TestConfiguredColumnsDriveProjection(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil, nil, ServiceConfig{
		Columns: []domain.Column{
			{Status: "todo", Name: "Backlog"},
			{Status: "review", Name: "Review"},
			{Status: "todo", Name: "dup"},
		},
	})
	if got := domain.ColumnStatuses(svc.Columns()); !reflect.DeepEqual(got, []domain.Status{"todo", "review"}) {
		t.Fatalf("unexpected columns %#v", got)
	}
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: "x", Status: "review", Board: "A"}); err != nil {
		t.Fatalf("CreateTask(review) error = %v", err)
	}
	if _, err := svc.CreateTask(ctx, domain.TaskInput{Title: "x", Status: domain.StatusDone, Board: "A"}); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus for done, got %v", err)
	}
}

func TestStorageFailuresPropagate(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(failingStorage{err: boom}, nil, nil, ServiceConfig{})
	if _, err := svc.LoadBoard(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := svc.InitializeData(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func mustCreate(t *testing.T, svc *Service, title string, status domain.Status, board string) domain.Task {
	t.Helper()
	task, err := svc.CreateTask(context.Background(), domain.TaskInput{
		Title:       title,
		Description: fmt.Sprintf("%s description", title),
		Status:      status,
		Board:       board,
	})
	if err != nil {
		t.Fatalf("CreateTask(%q) error = %v", title, err)
	}
	return task
}
