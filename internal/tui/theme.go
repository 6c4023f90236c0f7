package tui

import (
	"image/color"

	"charm.land/lipgloss/v2"
	"github.com/evanschultz/kanboard/internal/domain"
)

// palette holds the colors for one theme.
type palette struct {
	accent   color.Color
	text     color.Color
	muted    color.Color
	dim      color.Color
	selected color.Color
	danger   color.Color
	status   map[domain.Status]color.Color
}

func darkPalette() palette {
	return palette{
		accent:   lipgloss.Color("62"),
		text:     lipgloss.Color("252"),
		muted:    lipgloss.Color("241"),
		dim:      lipgloss.Color("239"),
		selected: lipgloss.Color("212"),
		danger:   lipgloss.Color("203"),
		status: map[domain.Status]color.Color{
			domain.StatusTodo:  lipgloss.Color("#49C4E5"),
			domain.StatusDoing: lipgloss.Color("#8471F2"),
			domain.StatusDone:  lipgloss.Color("#67E2AE"),
		},
	}
}

func lightPalette() palette {
	return palette{
		accent:   lipgloss.Color("#635FC7"),
		text:     lipgloss.Color("#000112"),
		muted:    lipgloss.Color("#828FA3"),
		dim:      lipgloss.Color("#D8D7F1"),
		selected: lipgloss.Color("#A8A4FF"),
		danger:   lipgloss.Color("#EA5555"),
		status: map[domain.Status]color.Color{
			domain.StatusTodo:  lipgloss.Color("#2A9DB8"),
			domain.StatusDoing: lipgloss.Color("#635FC7"),
			domain.StatusDone:  lipgloss.Color("#2E9D6C"),
		},
	}
}

// paletteFor returns the palette for the light flag.
func paletteFor(light bool) palette {
	if light {
		return lightPalette()
	}
	return darkPalette()
}

// statusColor returns the dot color for a column, falling back to the accent.
func (p palette) statusColor(status domain.Status) color.Color {
	if c, ok := p.status[status]; ok {
		return c
	}
	return p.accent
}
