package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// Service is the board-facing surface the view controller drives.
type Service interface {
	LoadBoard(context.Context) (app.BoardView, error)
	SelectBoard(context.Context, string) error
	CreateTask(context.Context, domain.TaskInput) (domain.Task, error)
	SaveTaskChanges(context.Context, int, string, string, domain.Status) (domain.Task, error)
	DeleteTask(context.Context, int) error
	ToggleSidebar(context.Context, bool) error
	ToggleTheme(context.Context) (bool, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define the modal modes. At most one is active.
const (
	modeNone inputMode = iota
	modeAddTask
	modeEditTask
	modeConfirmDelete
	modeTaskInfo
)

// boardState is the rendered board: everything the render functions read.
type boardState struct {
	boards  []string
	active  string
	columns []app.BoardColumn
	orphans []domain.Task
	sidebar bool
	light   bool
}

// newBoardState copies a service board view into render state.
func newBoardState(view app.BoardView) boardState {
	return boardState{
		boards:  append([]string(nil), view.Boards...),
		active:  view.ActiveBoard,
		columns: append([]app.BoardColumn(nil), view.Columns...),
		orphans: append([]domain.Task(nil), view.Orphans...),
		sidebar: view.SidebarVisible,
		light:   view.LightTheme,
	}
}

// statuses lists the column statuses in display order.
func (b boardState) statuses() []domain.Status {
	out := make([]domain.Status, 0, len(b.columns))
	for _, column := range b.columns {
		out = append(out, column.Column.Status)
	}
	return out
}

// Model is the bubbletea model for the board.
type Model struct {
	svc            Service
	logger         app.Logger
	writeClipboard ClipboardWriter
	markdown       *markdownRenderer

	ready  bool
	loaded bool
	width  int
	height int
	err    error

	status string

	help     help.Model
	keys     keyMap
	formKeys formKeyMap

	confirmDelete   bool
	showDescription bool

	board          boardState
	selectedColumn int
	selectedTask   int

	mode           inputMode
	form           taskForm
	pendingDelete  domain.Task
	infoTaskID     int
	pendingFocusID int
}

// boardLoadedMsg carries a freshly projected board.
type boardLoadedMsg struct {
	view app.BoardView
	err  error
}

// actionMsg carries the outcome of one mutation.
type actionMsg struct {
	err         error
	status      string
	reload      bool
	focusTaskID int
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:            svc,
		logger:         nopLogger{},
		writeClipboard: clipboard.WriteAll,
		markdown:       &markdownRenderer{},
		status:         "loading...",
		help:           h,
		keys:           newKeyMap(),
		formKeys:       newFormKeyMap(),
		confirmDelete:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadBoard
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		if msg.err != nil {
			m.logger.Error("load board failed", "err", msg.err)
			if !m.loaded {
				m.err = msg.err
				return m, nil
			}
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.board = newBoardState(msg.view)
		if m.pendingFocusID > 0 {
			m.focusTaskByID(m.pendingFocusID)
			m.pendingFocusID = 0
		}
		m.clampSelections()
		if m.mode == modeTaskInfo {
			if _, ok := m.taskByID(m.infoTaskID); !ok {
				m.mode = modeNone
			}
		}
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			if errors.Is(msg.err, app.ErrNotFound) {
				m.status = "task no longer exists"
				return m, m.loadBoard
			}
			m.logger.Error("board action failed", "err", msg.err)
			m.status = "error: " + msg.err.Error()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusTaskID > 0 {
			m.pendingFocusID = msg.focusTaskID
		}
		if msg.reload {
			return m, m.loadBoard
		}
		return m, nil

	case tea.KeyPressMsg:
		switch m.mode {
		case modeAddTask, modeEditTask:
			return m.handleFormKey(msg)
		case modeConfirmDelete:
			return m.handleConfirmKey(msg)
		case modeTaskInfo:
			return m.handleInfoKey(msg)
		default:
			return m.handleNormalModeKey(msg)
		}

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	default:
		if m.mode == modeAddTask || m.mode == modeEditTask {
			cmd := m.form.update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// loadBoard loads the active board projection.
func (m Model) loadBoard() tea.Msg {
	view, err := m.svc.LoadBoard(context.Background())
	return boardLoadedMsg{view: view, err: err}
}

// handleNormalModeKey handles keys while no modal is open.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		if m.help.ShowAll {
			m.status = "help"
		} else {
			m.status = "ready"
		}
		return m, nil
	case msg.String() == "esc":
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.status = "ready"
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadBoard
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.clampSelections()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.board.columns)-1 {
			m.selectedColumn++
			m.clampSelections()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if m.selectedTask < len(m.currentColumnTasks())-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.nextBoard):
		return m.cycleBoard(1)
	case key.Matches(msg, m.keys.prevBoard):
		return m.cycleBoard(-1)
	case key.Matches(msg, m.keys.toggleSidebar):
		show := !m.board.sidebar
		return m, m.toggleSidebarCmd(show)
	case key.Matches(msg, m.keys.toggleTheme):
		return m, m.toggleThemeCmd()
	case key.Matches(msg, m.keys.addTask):
		return m.startAddForm()
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m.startEditForm(task)
	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeTaskInfo
		m.infoTaskID = task.ID
		m.status = "task info"
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m.requestDelete(task)
	case key.Matches(msg, m.keys.copyTask):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		return m, m.copyTaskCmd(task)
	default:
		return m, nil
	}
}

// handleFormKey handles keys while the add or edit form is open.
func (m Model) handleFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.formKeys.cancel):
		m.mode = modeNone
		m.status = "cancelled"
		return m, nil
	case key.Matches(msg, m.formKeys.submit):
		return m.submitForm()
	case key.Matches(msg, m.formKeys.nextField):
		cmd := m.form.focusField(m.form.focus + 1)
		return m, cmd
	case key.Matches(msg, m.formKeys.prevField):
		cmd := m.form.focusField(m.form.focus - 1)
		return m, cmd
	case key.Matches(msg, m.formKeys.nextStatus):
		m.form.cycleStatus(1)
		return m, nil
	case key.Matches(msg, m.formKeys.prevStatus):
		m.form.cycleStatus(-1)
		return m, nil
	}

	if m.form.focus == formFieldStatus {
		switch msg.String() {
		case "right", "l":
			m.form.cycleStatus(1)
			return m, nil
		case "left", "h":
			m.form.cycleStatus(-1)
			return m, nil
		}
	}
	if msg.String() == "enter" {
		if m.form.lastField() {
			return m.submitForm()
		}
		if m.form.focus != formFieldDescription {
			cmd := m.form.focusField(m.form.focus + 1)
			return m, cmd
		}
	}
	cmd := m.form.update(msg)
	return m, cmd
}

// handleConfirmKey handles the delete confirmation modal.
func (m Model) handleConfirmKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		task := m.pendingDelete
		m.mode = modeNone
		m.pendingDelete = domain.Task{}
		return m, m.deleteTaskCmd(task)
	case "n", "N", "esc", "q":
		m.mode = modeNone
		m.pendingDelete = domain.Task{}
		m.status = "delete cancelled"
		return m, nil
	default:
		return m, nil
	}
}

// handleInfoKey handles the task info modal.
func (m Model) handleInfoKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	task, ok := m.taskByID(m.infoTaskID)
	if !ok {
		m.mode = modeNone
		return m, nil
	}
	switch {
	case msg.String() == "esc", key.Matches(msg, m.keys.taskInfo), key.Matches(msg, m.keys.quit):
		m.mode = modeNone
		m.status = "ready"
		return m, nil
	case key.Matches(msg, m.keys.editTask):
		return m.startEditForm(task)
	case key.Matches(msg, m.keys.deleteTask):
		return m.requestDelete(task)
	case key.Matches(msg, m.keys.copyTask):
		return m, m.copyTaskCmd(task)
	default:
		return m, nil
	}
}

// startAddForm opens the add form on the active board and the selected column's status.
func (m Model) startAddForm() (tea.Model, tea.Cmd) {
	statuses := m.board.statuses()
	if len(statuses) == 0 {
		m.status = "no columns configured"
		return m, nil
	}
	status := statuses[clamp(m.selectedColumn, 0, len(statuses)-1)]
	m.form = newAddForm(statuses, status, m.board.active)
	m.mode = modeAddTask
	m.status = "new task"
	cmd := m.form.focusField(formFieldTitle)
	return m, cmd
}

// startEditForm opens the edit form for task.
func (m Model) startEditForm(task domain.Task) (tea.Model, tea.Cmd) {
	m.form = newEditForm(m.board.statuses(), task)
	m.mode = modeEditTask
	m.status = "edit task"
	cmd := m.form.focusField(formFieldTitle)
	return m, cmd
}

// submitForm validates and dispatches the open form.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	in := m.form.input()
	if in.Title == "" {
		m.status = "title is required"
		cmd := m.form.focusField(formFieldTitle)
		return m, cmd
	}
	if !m.form.editing && in.Board == "" {
		m.status = "board is required"
		cmd := m.form.focusField(formFieldBoard)
		return m, cmd
	}
	m.mode = modeNone
	if m.form.editing {
		return m, m.saveTaskCmd(m.form.taskID, in)
	}
	return m, m.createTaskCmd(in)
}

// requestDelete deletes task, asking first when confirmation is enabled.
func (m Model) requestDelete(task domain.Task) (tea.Model, tea.Cmd) {
	if !m.confirmDelete {
		m.mode = modeNone
		return m, m.deleteTaskCmd(task)
	}
	m.mode = modeConfirmDelete
	m.pendingDelete = task
	m.status = "confirm delete"
	return m, nil
}

// cycleBoard activates the next or previous board, wrapping around.
func (m Model) cycleBoard(delta int) (tea.Model, tea.Cmd) {
	boards := m.board.boards
	if len(boards) < 2 {
		return m, nil
	}
	idx := max(0, slices.Index(boards, m.board.active))
	next := boards[((idx+delta)%len(boards)+len(boards))%len(boards)]
	return m.selectBoard(next)
}

// selectBoard persists board as active and resets the selection.
func (m Model) selectBoard(board string) (tea.Model, tea.Cmd) {
	if board == m.board.active {
		return m, nil
	}
	m.selectedColumn = 0
	m.selectedTask = 0
	return m, m.selectBoardCmd(board)
}

// selectBoardCmd persists the active board.
func (m Model) selectBoardCmd(board string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.SelectBoard(context.Background(), board); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "board: " + board, reload: true}
	}
}

// createTaskCmd stores a new task and switches to its board.
func (m Model) createTaskCmd(in domain.TaskInput) tea.Cmd {
	active := m.board.active
	return func() tea.Msg {
		ctx := context.Background()
		task, err := m.svc.CreateTask(ctx, in)
		if err != nil {
			return actionMsg{err: err}
		}
		if task.Board != active {
			if err := m.svc.SelectBoard(ctx, task.Board); err != nil {
				return actionMsg{err: err}
			}
		}
		return actionMsg{status: "created " + truncate(task.Title, 32), reload: true, focusTaskID: task.ID}
	}
}

// saveTaskCmd patches the edited fields.
func (m Model) saveTaskCmd(id int, in domain.TaskInput) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.SaveTaskChanges(context.Background(), id, in.Title, in.Description, in.Status)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "saved " + truncate(task.Title, 32), reload: true, focusTaskID: task.ID}
	}
}

// deleteTaskCmd removes task.
func (m Model) deleteTaskCmd(task domain.Task) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteTask(context.Background(), task.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "deleted " + truncate(task.Title, 32), reload: true}
	}
}

// toggleSidebarCmd persists sidebar visibility.
func (m Model) toggleSidebarCmd(show bool) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.ToggleSidebar(context.Background(), show); err != nil {
			return actionMsg{err: err}
		}
		status := "sidebar hidden"
		if show {
			status = "sidebar shown"
		}
		return actionMsg{status: status, reload: true}
	}
}

// toggleThemeCmd flips the persisted theme.
func (m Model) toggleThemeCmd() tea.Cmd {
	return func() tea.Msg {
		light, err := m.svc.ToggleTheme(context.Background())
		if err != nil {
			return actionMsg{err: err}
		}
		status := "dark theme"
		if light {
			status = "light theme"
		}
		return actionMsg{status: status, reload: true}
	}
}

// copyTaskCmd copies the task title and description to the clipboard.
func (m Model) copyTaskCmd(task domain.Task) tea.Cmd {
	text := task.Title
	if desc := strings.TrimSpace(task.Description); desc != "" {
		text += "\n\n" + desc
	}
	return func() tea.Msg {
		if err := m.writeClipboard(text); err != nil {
			return actionMsg{err: fmt.Errorf("copy to clipboard: %w", err)}
		}
		return actionMsg{status: "copied " + truncate(task.Title, 32)}
	}
}

// handleMouseWheel scrolls the selection in the focused column.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone {
		return m, nil
	}
	tasks := m.currentColumnTasks()
	if len(tasks) == 0 {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.selectedTask > 0 {
			m.selectedTask--
		}
	case tea.MouseWheelDown:
		if m.selectedTask < len(tasks)-1 {
			m.selectedTask++
		}
	}
	return m, nil
}

// handleMouseClick resolves a click against the hit table of the current layout.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll || m.mode != modeNone || msg.Button != tea.MouseLeft {
		return m, nil
	}
	_, hits := m.renderBody(paletteFor(m.board.light))
	hit, ok := resolveHit(hits, msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	switch hit.kind {
	case hitBoard:
		return m.selectBoard(hit.board)
	case hitColumn:
		m.selectedColumn = hit.column
		m.clampSelections()
		return m, nil
	case hitCard:
		m.selectedColumn = hit.column
		m.selectedTask = hit.task
		m.clampSelections()
		task, ok := m.selectedTaskValue()
		if !ok {
			return m, nil
		}
		return m.startEditForm(task)
	}
	return m, nil
}

// clampSelections keeps the selection inside the loaded board.
func (m *Model) clampSelections() {
	if len(m.board.columns) == 0 {
		m.selectedColumn = 0
		m.selectedTask = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.board.columns)-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(m.currentColumnTasks())-1))
}

// focusTaskByID selects the card carrying id, if it is on the active board.
func (m *Model) focusTaskByID(id int) {
	for colIdx, column := range m.board.columns {
		for taskIdx, task := range column.Tasks {
			if task.ID == id {
				m.selectedColumn = colIdx
				m.selectedTask = taskIdx
				return
			}
		}
	}
}

// currentColumnTasks returns the cards in the selected column.
func (m Model) currentColumnTasks() []domain.Task {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.board.columns) {
		return nil
	}
	return m.board.columns[m.selectedColumn].Tasks
}

// selectedTaskValue returns the selected card.
func (m Model) selectedTaskValue() (domain.Task, bool) {
	tasks := m.currentColumnTasks()
	if m.selectedTask < 0 || m.selectedTask >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.selectedTask], true
}

// taskByID finds a card on the active board.
func (m Model) taskByID(id int) (domain.Task, bool) {
	for _, column := range m.board.columns {
		for _, task := range column.Tasks {
			if task.ID == id {
				return task, true
			}
		}
	}
	return domain.Task{}, false
}

// nopLogger discards model logs when no logger option is supplied.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
