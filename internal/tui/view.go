package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/kanboard/internal/app"
)

// layout rows and widths shared by rendering and mouse hit testing.
const (
	boardTopRow      = 2
	footerRows       = 3
	columnHeaderRows = 2
	sidebarWidth     = 24
	sidebarHeadRows  = 2
)

// hitKind orders hit targets; lower values win when rectangles overlap.
type hitKind int

const (
	hitCard hitKind = iota
	hitBoard
	hitColumn
)

// cardHit is one clickable rectangle of the rendered board, in screen cells.
type cardHit struct {
	kind   hitKind
	x0, x1 int
	y0, y1 int
	column int
	task   int
	board  string
}

// contains reports whether the cell x,y is inside the hit rectangle.
func (h cardHit) contains(x, y int) bool {
	return x >= h.x0 && x <= h.x1 && y >= h.y0 && y <= h.y1
}

// resolveHit returns the highest-priority target under x,y.
func resolveHit(hits []cardHit, x, y int) (cardHit, bool) {
	var best cardHit
	found := false
	for _, hit := range hits {
		if !hit.contains(x, y) {
			continue
		}
		if !found || hit.kind < best.kind {
			best = hit
			found = true
		}
	}
	return best, found
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}
	if !m.ready || !m.loaded {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	pal := paletteFor(m.board.light)
	statusStyle := lipgloss.NewStyle().Foreground(pal.muted)
	warningStyle := lipgloss.NewStyle().Foreground(pal.danger)

	body, _ := m.renderBody(pal)
	sections := []string{m.renderHeader(pal), "", body}

	statusLine := statusStyle.Render(m.status)
	if len(m.board.boards) == 0 {
		statusLine = statusStyle.Render("no boards yet • press n to create a task on a new board")
	}
	if n := len(m.board.orphans); n > 0 {
		statusLine += warningStyle.Render(fmt.Sprintf("  %d task(s) hidden: no column for status", n))
	}
	sections = append(sections, statusLine)
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpText := helpBubble.View(m.keys)
	if m.mode == modeAddTask || m.mode == modeEditTask {
		helpText = helpBubble.View(m.formKeys)
	}
	helpLine := lipgloss.NewStyle().
		Foreground(pal.muted).
		BorderTop(true).
		BorderForeground(pal.dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpText)

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	overlay := m.renderModeOverlay(pal, m.width-8)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(pal, m.width-8)
	}
	if overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}

	view := tea.NewView(fullContent)
	view.MouseMode = tea.MouseModeCellMotion
	view.AltScreen = true
	return view
}

// renderHeader renders the app title, active board and mode.
func (m Model) renderHeader(pal palette) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.text)
	boardStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.accent)
	dimStyle := lipgloss.NewStyle().Foreground(pal.muted)

	board := m.board.active
	if board == "" {
		board = "no boards"
	}
	return titleStyle.Render("kanboard") + "  " + boardStyle.Render(board) + dimStyle.Render("  ["+m.modeLabel()+"]")
}

// renderBody renders the sidebar and columns and returns the hit table for that layout.
func (m Model) renderBody(pal palette) (string, []cardHit) {
	innerHeight := m.columnHeight()
	hits := make([]cardHit, 0, 16)
	parts := make([]string, 0, len(m.board.columns)+1)
	x := 0

	if m.board.sidebar {
		sidebar := m.renderSidebar(pal, innerHeight)
		w := lipgloss.Width(sidebar)
		visible := max(0, innerHeight-sidebarHeadRows)
		for idx, board := range m.board.boards {
			if idx >= visible {
				break
			}
			y := boardTopRow + 1 + sidebarHeadRows + idx
			hits = append(hits, cardHit{kind: hitBoard, x0: x, x1: x + w - 2, y0: y, y1: y, board: board})
		}
		parts = append(parts, sidebar)
		x += w
	}

	colWidth := m.columnWidthFor(m.width - x)
	for colIdx, column := range m.board.columns {
		rendered, rows, scrollTop := m.renderColumn(pal, colIdx, column, colWidth, innerHeight)
		w := lipgloss.Width(rendered)
		h := lipgloss.Height(rendered)
		hits = append(hits, cardHit{kind: hitColumn, x0: x, x1: x + w - 2, y0: boardTopRow, y1: boardTopRow + h - 1, column: colIdx})

		window := max(1, innerHeight-columnHeaderRows)
		for taskIdx, row := range rows {
			start := max(row[0], scrollTop)
			end := min(row[1], scrollTop+window-1)
			if start > end {
				continue
			}
			top := boardTopRow + 1 + columnHeaderRows
			hits = append(hits, cardHit{
				kind:   hitCard,
				x0:     x,
				x1:     x + w - 2,
				y0:     top + start - scrollTop,
				y1:     top + end - scrollTop,
				column: colIdx,
				task:   taskIdx,
			})
		}
		parts = append(parts, rendered)
		x += w
	}

	if len(parts) == 0 {
		return "", hits
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...), hits
}

// renderSidebar renders the board list.
func (m Model) renderSidebar(pal palette, innerHeight int) string {
	headStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.muted)
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.accent)
	itemStyle := lipgloss.NewStyle().Foreground(pal.text)

	lines := []string{headStyle.Render(fmt.Sprintf("ALL BOARDS (%d)", len(m.board.boards))), ""}
	for _, board := range m.board.boards {
		label := truncate(board, sidebarWidth-8)
		if board == m.board.active {
			lines = append(lines, activeStyle.Render("▸ "+label))
			continue
		}
		lines = append(lines, itemStyle.Render("  "+label))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.dim).
		Padding(0, 1).
		MarginRight(1).
		Width(sidebarWidth).
		Render(fitLines(strings.Join(lines, "\n"), innerHeight))
}

// renderColumn renders one status column. It returns the per-card row spans
// relative to the card window and the scroll offset used.
func (m Model) renderColumn(pal palette, colIdx int, column app.BoardColumn, colWidth, innerHeight int) (string, [][2]int, int) {
	selectedCol := colIdx == m.selectedColumn
	borderColor := pal.dim
	if selectedCol {
		borderColor = pal.accent
	}
	headStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.muted)
	dotStyle := lipgloss.NewStyle().Foreground(pal.statusColor(column.Column.Status))
	cardStyle := lipgloss.NewStyle().Foreground(pal.text)
	selectedStyle := lipgloss.NewStyle().Foreground(pal.selected).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(pal.muted)

	textWidth := max(1, colWidth-6)
	header := dotStyle.Render("●") + " " + headStyle.Render(truncate(fmt.Sprintf("%s (%d)", column.Column.Name, len(column.Tasks)), textWidth))

	cardLines := make([]string, 0, len(column.Tasks)*3)
	rows := make([][2]int, 0, len(column.Tasks))
	if len(column.Tasks) == 0 {
		cardLines = append(cardLines, subStyle.Render("(empty)"))
	}
	for taskIdx, task := range column.Tasks {
		selected := selectedCol && taskIdx == m.selectedTask
		prefix := "  "
		style := cardStyle
		if selected {
			prefix = "│ "
			style = selectedStyle
		}
		start := len(cardLines)
		cardLines = append(cardLines, style.Render(prefix+truncate(task.Title, textWidth)))
		if m.showDescription {
			if desc := firstLine(task.Description); desc != "" {
				cardLines = append(cardLines, prefix+subStyle.Render(truncate(desc, textWidth)))
			}
		}
		rows = append(rows, [2]int{start, len(cardLines) - 1})
		if taskIdx < len(column.Tasks)-1 {
			cardLines = append(cardLines, "")
		}
	}

	window := max(1, innerHeight-columnHeaderRows)
	scrollTop := 0
	if selectedCol && m.selectedTask < len(rows) {
		selStart, selEnd := rows[m.selectedTask][0], rows[m.selectedTask][1]
		if selEnd >= scrollTop+window {
			scrollTop = selEnd - window + 1
		}
		if selStart < scrollTop {
			scrollTop = selStart
		}
	}
	scrollTop = clamp(scrollTop, 0, max(0, len(cardLines)-window))
	if len(cardLines) > window {
		cardLines = cardLines[scrollTop : scrollTop+window]
	}

	lines := append([]string{header, ""}, cardLines...)
	rendered := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth).
		Render(fitLines(strings.Join(lines, "\n"), innerHeight))
	return rendered, rows, scrollTop
}

// renderModeOverlay renders the modal for the active mode.
func (m Model) renderModeOverlay(pal palette, maxWidth int) string {
	switch m.mode {
	case modeAddTask, modeEditTask:
		return m.renderFormOverlay(pal, maxWidth)
	case modeConfirmDelete:
		return m.renderConfirmOverlay(pal, maxWidth)
	case modeTaskInfo:
		return m.renderInfoOverlay(pal, maxWidth)
	default:
		return ""
	}
}

// renderFormOverlay renders the add/edit task form.
func (m Model) renderFormOverlay(pal palette, maxWidth int) string {
	boxWidth := clamp(maxWidth, 30, 64)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.text)
	labelStyle := lipgloss.NewStyle().Foreground(pal.muted)
	focusStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.accent)
	hintStyle := lipgloss.NewStyle().Foreground(pal.muted)

	form := m.form
	form.description.SetWidth(max(10, boxWidth-6))

	label := func(idx int, text string) string {
		if form.focus == idx {
			return focusStyle.Render("› " + text)
		}
		return labelStyle.Render("  " + text)
	}

	heading := "Add New Task"
	if form.editing {
		heading = "Edit Task"
	}
	selector := "◂ " + string(form.status()) + " ▸"
	if form.focus == formFieldStatus {
		selector = focusStyle.Render(selector)
	}

	lines := []string{
		titleStyle.Render(heading),
		"",
		label(formFieldTitle, "Title"),
		form.title.View(),
		"",
		label(formFieldDescription, "Description"),
		form.description.View(),
		"",
		label(formFieldStatus, "Current Status"),
		"  " + selector,
	}
	if !form.editing {
		lines = append(lines, "", label(formFieldBoard, "Board"), form.board.View())
	}
	action := "create task"
	if form.editing {
		action = "save changes"
	}
	lines = append(lines, "", hintStyle.Render("tab next field • ctrl+s "+action+" • esc cancel"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.accent).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

// renderConfirmOverlay renders the delete confirmation.
func (m Model) renderConfirmOverlay(pal palette, maxWidth int) string {
	boxWidth := clamp(maxWidth, 30, 56)
	dangerStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.danger)
	hintStyle := lipgloss.NewStyle().Foreground(pal.muted)
	lines := []string{
		dangerStyle.Render("Delete this task?"),
		"",
		"Are you sure you would like to delete this Task?",
		"",
		lipgloss.NewStyle().Foreground(pal.text).Render("“" + truncate(m.pendingDelete.Title, boxWidth-10) + "”"),
		"",
		hintStyle.Render("y delete • n cancel"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.danger).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

// renderInfoOverlay renders task details with the description as markdown.
func (m Model) renderInfoOverlay(pal palette, maxWidth int) string {
	task, ok := m.taskByID(m.infoTaskID)
	if !ok {
		return ""
	}
	boxWidth := clamp(maxWidth, 30, 80)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(pal.text)
	metaStyle := lipgloss.NewStyle().Foreground(pal.muted)
	dotStyle := lipgloss.NewStyle().Foreground(pal.statusColor(task.Status))

	description := m.markdown.render(task.Description, boxWidth-6, m.board.light)
	if description == "" {
		description = metaStyle.Render("(no description)")
	}
	lines := []string{
		titleStyle.Render(task.Title),
		dotStyle.Render("●") + metaStyle.Render(fmt.Sprintf(" %s • %s • #%d", task.Status, task.Board, task.ID)),
		"",
		description,
		"",
		metaStyle.Render("e edit • d delete • y copy • esc close"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.accent).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

// renderHelpOverlay renders the full key reference.
func (m Model) renderHelpOverlay(pal palette, maxWidth int) string {
	boxWidth := clamp(maxWidth, 30, 96)
	helpBubble := m.help
	helpBubble.ShowAll = true
	helpBubble.SetWidth(boxWidth - 6)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(pal.text).Render("Keyboard shortcuts"),
		"",
		helpBubble.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(pal.muted).Render("? or esc to close"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pal.accent).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

// modeLabel names the active mode for the header.
func (m Model) modeLabel() string {
	switch m.mode {
	case modeAddTask:
		return "add"
	case modeEditTask:
		return "edit"
	case modeConfirmDelete:
		return "delete"
	case modeTaskInfo:
		return "info"
	default:
		return "board"
	}
}

// columnWidthFor returns the width of each column given the space left of the sidebar.
func (m Model) columnWidthFor(boardWidth int) int {
	if len(m.board.columns) == 0 || boardWidth <= 0 {
		return 28
	}
	// border (2), padding (2), margin (1)
	const colOverhead = 5
	return clamp(boardWidth/len(m.board.columns)-colOverhead, 20, 40)
}

// columnHeight returns the number of content rows inside each column.
func (m Model) columnHeight() int {
	if m.height <= 0 {
		return 12
	}
	return max(6, m.height-boardTopRow-footerRows-2)
}
