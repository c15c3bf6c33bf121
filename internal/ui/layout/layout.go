package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/ui/theme"
)

// Smallest terminal the UI draws in.
const (
	MinWidth  = 60
	MinHeight = 16
)

// KeyHint is one footer entry, e.g. {"Ctrl+P", "Photo"}.
type KeyHint struct {
	Key         string
	Description string
}

func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

func RenderMinSizeMessage(width, height int) string {
	msg := fmt.Sprintf("Terminal too small.\n\nResize to at least %d x %d\n(current %d x %d)",
		MinWidth, MinHeight, width, height)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, theme.Body.Render(msg))
}

// RenderHeader draws the app name on the left, the screen title centred and
// status, such as "3 photos · Cloud vision", on the right.
func RenderHeader(title, status string, width int) string {
	inner := max(width-4, 0)
	left := theme.Title.Render("  snapask")
	right := lipgloss.NewStyle().Foreground(theme.Accent).Render(status)

	mid := inner - lipgloss.Width(left) - lipgloss.Width(right)
	center := lipgloss.PlaceHorizontal(max(mid, 0), lipgloss.Center, theme.Body.Render(title))
	return theme.Bar.Width(width).Render(left + center + right)
}

// RenderFooter draws as many hints as fit on one line, in order.
func RenderFooter(hints []KeyHint, width int) string {
	const sep = "   "
	room := max(width-6, 0)

	var b strings.Builder
	b.WriteString("  ")
	used := 0
	for i, h := range hints {
		part := theme.Body.Bold(true).Render(h.Key) + " " + theme.Subtitle.Render(h.Description)
		w := lipgloss.Width(part)
		if i > 0 {
			w += len(sep)
		}
		if used+w > room {
			break
		}
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(part)
		used += w
	}
	return theme.Bar.Width(width).Render(b.String())
}

// RenderFrame stacks header, content and footer, padding the content to fill
// the window.
func RenderFrame(header, content, footer string, width, height int) string {
	h := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	body := lipgloss.NewStyle().Width(width).Height(h).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// Wrap soft-wraps text to width columns.
func Wrap(text string, width int) string {
	if width < 1 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
