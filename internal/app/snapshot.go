package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/kanboard/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kanboard.snapshot.v1"

// Snapshot is the full portable state: tasks plus UI preferences.
type Snapshot struct {
	Version     string        `json:"version"`
	ExportedAt  time.Time     `json:"exported_at"`
	ActiveBoard string        `json:"active_board"`
	ShowSidebar bool          `json:"show_sidebar"`
	LightTheme  bool          `json:"light_theme"`
	Tasks       []domain.Task `json:"tasks"`
}

// ExportSnapshot captures the current store contents.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	tasks, err := s.store.GetTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	active, err := s.resolveActiveBoard(ctx, domain.DistinctBoards(tasks))
	if err != nil {
		return Snapshot{}, err
	}
	sidebar, err := s.prefs.SidebarVisible(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	light, err := s.prefs.LightTheme(ctx, s.defaultLight)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Version:     SnapshotVersion,
		ExportedAt:  s.clock().UTC(),
		ActiveBoard: active,
		ShowSidebar: sidebar,
		LightTheme:  light,
		Tasks:       tasks,
	}
	return snap, nil
}

// DecodeSnapshot validates raw JSON against the snapshot schema and decodes it.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	failures, err := validateSnapshotJSON(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("validate snapshot schema: %w", err)
	}
	if len(failures) > 0 {
		msgs := make([]string, 0, len(failures))
		for _, failure := range failures {
			msgs = append(msgs, failure.Error())
		}
		return Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// ImportSnapshot replaces the stored task list and preferences with snap.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := s.validateSnapshot(&snap); err != nil {
		return err
	}
	if err := s.store.ReplaceAll(ctx, snap.Tasks); err != nil {
		return err
	}
	if board := strings.TrimSpace(snap.ActiveBoard); board != "" {
		if err := s.prefs.SetActiveBoard(ctx, board); err != nil {
			return err
		}
	} else if err := s.prefs.ClearActiveBoard(ctx); err != nil {
		return err
	}
	if err := s.prefs.SetSidebarVisible(ctx, snap.ShowSidebar); err != nil {
		return err
	}
	if err := s.prefs.SetLightTheme(ctx, snap.LightTheme); err != nil {
		return err
	}
	s.logger.Info("snapshot imported", "tasks", len(snap.Tasks))
	return nil
}

// validateSnapshot normalizes every task and checks ids and statuses.
func (s *Service) validateSnapshot(snap *Snapshot) error {
	if snap.Version != "" && snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, snap.Version)
	}
	snap.Tasks = append([]domain.Task(nil), snap.Tasks...)
	seen := make(map[int]struct{}, len(snap.Tasks))
	for i, raw := range snap.Tasks {
		task, err := domain.NewTask(raw.ID, raw.Input())
		if err != nil {
			return fmt.Errorf("%w: tasks[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		if err := s.checkStatus(task.Status); err != nil {
			return fmt.Errorf("%w: tasks[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		if _, ok := seen[task.ID]; ok {
			return fmt.Errorf("%w: duplicate task id %d", ErrInvalidSnapshot, task.ID)
		}
		seen[task.ID] = struct{}{}
		snap.Tasks[i] = task
	}
	return nil
}
