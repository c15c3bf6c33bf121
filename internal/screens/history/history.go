package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/router"
	"github.com/abhisek/snapask/internal/screen"
	"github.com/abhisek/snapask/internal/store"
	"github.com/abhisek/snapask/internal/ui/layout"
	"github.com/abhisek/snapask/internal/ui/theme"
)

// Queries is the read side of store.EventRepo used by this screen.
type Queries interface {
	QueryQueryEvents(ctx context.Context, opts store.QueryOpts) ([]store.QueryEventRecord, error)
}

type historyLoadedMsg struct {
	Events []store.QueryEventRecord
	Err    error
}

// HistoryScreen displays past questions and their answers.
type HistoryScreen struct {
	repo     Queries
	events   []store.QueryEventRecord
	selected int
	expanded map[int]bool
	loaded   bool
	errMsg   string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(repo Queries) *HistoryScreen {
	return &HistoryScreen{
		repo:     repo,
		expanded: make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	repo := s.repo
	return func() tea.Msg {
		events, err := repo.QueryQueryEvents(context.Background(), store.QueryOpts{Limit: 50})
		return historyLoadedMsg{Events: events, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.events = msg.Events
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.events)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.events) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No questions yet.")
	}

	inner := min(width-8, 96)
	var b strings.Builder
	b.WriteString("\n")

	for i, ev := range s.events {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}

		mark := theme.Good.Render("✓")
		if ev.ErrorMessage != "" {
			mark = theme.Bad.Render("✗")
		}

		line := fmt.Sprintf("%s%s  %s  %d photos  %s",
			prefix, ev.Timestamp.Local().Format("Jan 02 15:04"), ev.Variant, ev.PhotoCount, truncate(ev.Question, 48))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		b.WriteString("  " + mark + " " + style.Render(line))
		b.WriteString("\n")

		if s.expanded[i] {
			body := ev.Answer
			bodyStyle := theme.Body
			if ev.ErrorMessage != "" {
				body = ev.ErrorMessage
				bodyStyle = theme.Bad
			}
			detail := theme.Subtitle.Render(fmt.Sprintf("%s · %dms", ev.Question, ev.LatencyMs)) +
				"\n" + bodyStyle.Render(layout.Wrap(body, inner))
			b.WriteString(lipgloss.NewStyle().PaddingLeft(6).Render(detail))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
