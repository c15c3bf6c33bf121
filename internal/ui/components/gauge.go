package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/ui/theme"
)

// Gauge shows how full a bounded buffer is, e.g. "Photos ████░░ 4/10".
type Gauge struct {
	Label string
	Value int
	Max   int
	Width int
}

// View renders the gauge.
func (g Gauge) View() string {
	label := lipgloss.NewStyle().Foreground(theme.Text).Render(g.Label) + "  "
	count := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("  %d/%d", g.Value, g.Max))

	barWidth := g.Width - lipgloss.Width(label) - lipgloss.Width(count)
	if barWidth < 4 {
		barWidth = 4
	}

	filled := 0
	if g.Max > 0 {
		filled = barWidth * g.Value / g.Max
	}
	filled = min(max(filled, 0), barWidth)

	return label +
		theme.GaugeFilled.Render(strings.Repeat(" ", filled)) +
		theme.GaugeEmpty.Render(strings.Repeat(" ", barWidth-filled)) +
		count
}
