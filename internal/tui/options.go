package tui

import "github.com/evanschultz/kanboard/internal/app"

// ClipboardWriter copies text to the system clipboard.
type ClipboardWriter func(string) error

type Option func(*Model)

// WithConfirmDelete toggles the confirmation modal shown before a delete.
func WithConfirmDelete(enabled bool) Option {
	return func(m *Model) {
		m.confirmDelete = enabled
	}
}

// WithShowDescription renders a description preview line under each card title.
func WithShowDescription(enabled bool) Option {
	return func(m *Model) {
		m.showDescription = enabled
	}
}

func WithLogger(logger app.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithClipboard(write ClipboardWriter) Option {
	return func(m *Model) {
		if write != nil {
			m.writeClipboard = write
		}
	}
}
