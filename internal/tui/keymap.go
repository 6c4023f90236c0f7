package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board-mode key bindings.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	nextBoard     key.Binding
	prevBoard     key.Binding
	toggleSidebar key.Binding
	toggleTheme   key.Binding
	addTask       key.Binding
	editTask      key.Binding
	taskInfo      key.Binding
	deleteTask    key.Binding
	copyTask      key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		nextBoard:     key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "next board")),
		prevBoard:     key.NewBinding(key.WithKeys("B", "shift+b"), key.WithHelp("B", "previous board")),
		toggleSidebar: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle sidebar")),
		toggleTheme:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle theme")),
		addTask:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		editTask:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e/enter", "edit task")),
		taskInfo:      key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "task info")),
		deleteTask:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		copyTask:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addTask, k.editTask, k.taskInfo, k.deleteTask, k.nextBoard, k.toggleSidebar, k.toggleHelp, k.quit,
	}
}

// FullHelp returns the bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.addTask, k.editTask, k.taskInfo, k.deleteTask, k.copyTask},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.nextBoard, k.prevBoard, k.toggleSidebar, k.toggleTheme, k.reload, k.toggleHelp, k.quit},
	}
}

// formKeyMap holds the bindings active while a task form is open.
type formKeyMap struct {
	nextField  key.Binding
	prevField  key.Binding
	nextStatus key.Binding
	prevStatus key.Binding
	submit     key.Binding
	cancel     key.Binding
}

// newFormKeyMap constructs form key map.
func newFormKeyMap() formKeyMap {
	return formKeyMap{
		nextField:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		prevField:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		nextStatus: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n/→", "next status")),
		prevStatus: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p/←", "previous status")),
		submit:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp returns the bindings shown under an open form.
func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.nextField, k.nextStatus, k.prevStatus, k.submit, k.cancel}
}

// FullHelp returns the form bindings as one group.
func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
