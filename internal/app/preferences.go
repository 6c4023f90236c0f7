package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Stored flag values.
const (
	sidebarShown  = "true"
	sidebarHidden = "false"
	lightThemeOn  = "enabled"
	lightThemeOff = "disabled"
)

// Preferences persists the UI flags next to the task list.
type Preferences struct {
	storage Storage
	logger  Logger
}

// NewPreferences constructs preferences over storage.
func NewPreferences(storage Storage, logger Logger) *Preferences {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Preferences{storage: storage, logger: logger}
}

// ActiveBoard returns the persisted active board name, or "" when unset.
func (p *Preferences) ActiveBoard(ctx context.Context) (string, error) {
	raw, ok, err := p.storage.GetItem(ctx, KeyActiveBoard)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", KeyActiveBoard, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return "", nil
	}
	var board string
	if err := json.Unmarshal([]byte(raw), &board); err != nil {
		p.logger.Warn("stored active board is malformed, ignoring", "key", KeyActiveBoard, "err", err)
		return "", nil
	}
	return board, nil
}

// SetActiveBoard persists the active board as a JSON string.
func (p *Preferences) SetActiveBoard(ctx context.Context, board string) error {
	encoded, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyActiveBoard, err)
	}
	if err := p.storage.SetItem(ctx, KeyActiveBoard, string(encoded)); err != nil {
		return fmt.Errorf("write %s: %w", KeyActiveBoard, err)
	}
	return nil
}

// ClearActiveBoard removes the persisted active board.
func (p *Preferences) ClearActiveBoard(ctx context.Context) error {
	if err := p.storage.RemoveItem(ctx, KeyActiveBoard); err != nil {
		return fmt.Errorf("remove %s: %w", KeyActiveBoard, err)
	}
	return nil
}

// SidebarVisible reports whether the sidebar flag is stored as "true".
func (p *Preferences) SidebarVisible(ctx context.Context) (bool, error) {
	raw, _, err := p.storage.GetItem(ctx, KeyShowSidebar)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", KeyShowSidebar, err)
	}
	return raw == sidebarShown, nil
}

// SetSidebarVisible persists the sidebar flag.
func (p *Preferences) SetSidebarVisible(ctx context.Context, show bool) error {
	value := sidebarHidden
	if show {
		value = sidebarShown
	}
	if err := p.storage.SetItem(ctx, KeyShowSidebar, value); err != nil {
		return fmt.Errorf("write %s: %w", KeyShowSidebar, err)
	}
	return nil
}

// LightTheme reports the stored theme preference, falling back when the key is unset.
func (p *Preferences) LightTheme(ctx context.Context, fallback bool) (bool, error) {
	raw, ok, err := p.storage.GetItem(ctx, KeyLightTheme)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", KeyLightTheme, err)
	}
	if !ok {
		return fallback, nil
	}
	return raw == lightThemeOn, nil
}

// SetLightTheme persists the theme preference.
func (p *Preferences) SetLightTheme(ctx context.Context, light bool) error {
	value := lightThemeOff
	if light {
		value = lightThemeOn
	}
	if err := p.storage.SetItem(ctx, KeyLightTheme, value); err != nil {
		return fmt.Errorf("write %s: %w", KeyLightTheme, err)
	}
	return nil
}
