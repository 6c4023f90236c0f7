package tui

import (
	"slices"
	"strings"

	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/evanschultz/kanboard/internal/domain"
)

// task-form field indexes in focus order.
const (
	formFieldTitle = iota
	formFieldDescription
	formFieldStatus
	formFieldBoard
)

// taskForm is the add/edit modal state. The board field only exists on the add form.
type taskForm struct {
	editing     bool
	taskID      int
	title       textinput.Model
	description textarea.Model
	board       textinput.Model
	statuses    []domain.Status
	statusIdx   int
	focus       int
}

// newModalInput constructs modal input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// newDescriptionArea constructs the multi-line description input.
func newDescriptionArea(value string) textarea.Model {
	area := textarea.New()
	area.Placeholder = "e.g. take a coffee break (markdown supported)"
	area.ShowLineNumbers = false
	area.CharLimit = 2000
	area.SetHeight(4)
	if value != "" {
		area.SetValue(value)
	}
	return area
}

// newAddForm opens an empty form on the active board, defaulting to the selected column's status.
func newAddForm(statuses []domain.Status, status domain.Status, board string) taskForm {
	form := taskForm{
		title:       newModalInput("", "e.g. take chilled break", "", 120),
		description: newDescriptionArea(""),
		board:       newModalInput("", "board name (required)", board, 80),
		statuses:    append([]domain.Status(nil), statuses...),
	}
	form.statusIdx = max(0, slices.Index(form.statuses, status))
	return form
}

// newEditForm opens a form prefilled from task.
func newEditForm(statuses []domain.Status, task domain.Task) taskForm {
	form := taskForm{
		editing:     true,
		taskID:      task.ID,
		title:       newModalInput("", "task title (required)", task.Title, 120),
		description: newDescriptionArea(task.Description),
		statuses:    append([]domain.Status(nil), statuses...),
	}
	form.statusIdx = slices.Index(form.statuses, task.Status)
	if form.statusIdx < 0 {
		form.statuses = append(form.statuses, task.Status)
		form.statusIdx = len(form.statuses) - 1
	}
	return form
}

// fieldCount returns the number of focusable fields.
func (f taskForm) fieldCount() int {
	if f.editing {
		return formFieldStatus + 1
	}
	return formFieldBoard + 1
}

// lastField reports whether focus sits on the final field.
func (f taskForm) lastField() bool {
	return f.focus == f.fieldCount()-1
}

// focusField moves focus to idx, wrapping around.
func (f *taskForm) focusField(idx int) tea.Cmd {
	count := f.fieldCount()
	f.focus = ((idx % count) + count) % count
	f.title.Blur()
	f.description.Blur()
	f.board.Blur()
	switch f.focus {
	case formFieldTitle:
		return f.title.Focus()
	case formFieldDescription:
		return f.description.Focus()
	case formFieldBoard:
		return f.board.Focus()
	default:
		return nil
	}
}

// cycleStatus steps the status selector by delta, wrapping around.
func (f *taskForm) cycleStatus(delta int) {
	if len(f.statuses) == 0 {
		return
	}
	n := len(f.statuses)
	f.statusIdx = ((f.statusIdx+delta)%n + n) % n
}

// status returns the selected status.
func (f taskForm) status() domain.Status {
	if f.statusIdx < 0 || f.statusIdx >= len(f.statuses) {
		return ""
	}
	return f.statuses[f.statusIdx]
}

// input returns the form values as task input.
func (f taskForm) input() domain.TaskInput {
	return domain.TaskInput{
		Title:       strings.TrimSpace(f.title.Value()),
		Description: strings.TrimSpace(f.description.Value()),
		Status:      f.status(),
		Board:       strings.TrimSpace(f.board.Value()),
	}
}

// update forwards a key to the focused text field.
func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case formFieldTitle:
		f.title, cmd = f.title.Update(msg)
	case formFieldDescription:
		f.description, cmd = f.description.Update(msg)
	case formFieldBoard:
		f.board, cmd = f.board.Update(msg)
	}
	return cmd
}
