package ask

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/ui/components"
	"github.com/abhisek/snapask/internal/ui/layout"
	"github.com/abhisek/snapask/internal/ui/theme"
)

func (s *Screen) View(width, height int) string {
	contentWidth := min(width-4, 96)
	if contentWidth < 20 {
		contentWidth = 20
	}

	var b strings.Builder

	gauge := components.Gauge{
		Label: "Photos",
		Value: s.snap.PhotoCount,
		Max:   s.maxPhotos,
		Width: contentWidth,
	}
	b.WriteString(gauge.View())
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Render(s.snap.Status + " · " + s.snap.Variant.Label()))
	b.WriteString("\n\n")

	b.WriteString(s.renderResult(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(s.input.View())
	b.WriteString("\n")
	if s.notice != "" {
		if s.noticeOK {
			b.WriteString(theme.Good.Render(s.notice))
		} else {
			b.WriteString(theme.Bad.Render(s.notice))
		}
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (s *Screen) renderResult(width int) string {
	inner := width - 4
	switch {
	case s.snap.Loading:
		q := theme.Subtitle.Render("Q: " + s.snap.Question)
		spin := theme.Selected.Render(spinnerFrames[s.frame]) + " " + theme.Body.Render("Looking at the photos...")
		return theme.Card.Width(width).Render(layout.Wrap(q, inner) + "\n\n" + spin)

	case s.snap.Error != "":
		q := theme.Subtitle.Render("Q: " + s.snap.Question)
		return theme.ErrorCard.Width(width).Render(
			layout.Wrap(q, inner) + "\n\n" + theme.Bad.Render(layout.Wrap(s.snap.Error, inner)))

	case s.snap.Answer != "":
		q := theme.Subtitle.Render("Q: " + s.snap.Question)
		return theme.Card.Width(width).Render(
			layout.Wrap(q, inner) + "\n\n" + theme.Body.Render(layout.Wrap(s.snap.Answer, inner)))
	}

	return theme.Hint.Render("Type a question and press Enter.")
}
