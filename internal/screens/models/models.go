// Package models lets the user pick which vision backend answers questions.
package models

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/router"
	"github.com/abhisek/snapask/internal/screen"
	"github.com/abhisek/snapask/internal/ui/components"
	"github.com/abhisek/snapask/internal/ui/layout"
	"github.com/abhisek/snapask/internal/ui/theme"
)

// Session is the part of *agent.Agent this screen needs.
type Session interface {
	Snapshot() agent.Snapshot
	SelectModel(v llm.Variant) error
}

// Configured reports whether a backend has the settings it needs.
type Configured func(v llm.Variant) bool

type selectedMsg struct {
	Variant llm.Variant
	Err     error
}

// ModelsScreen lists every variant with its setup state.
type ModelsScreen struct {
	session    Session
	configured Configured
	menu       components.Menu
	errMsg     string
}

var _ screen.Screen = (*ModelsScreen)(nil)
var _ screen.KeyHintProvider = (*ModelsScreen)(nil)

// New creates the screen with the current variant selected.
func New(session Session, configured Configured) *ModelsScreen {
	s := &ModelsScreen{session: session, configured: configured}
	current := session.Snapshot().Variant

	items := make([]components.MenuItem, len(llm.Variants))
	for i, v := range llm.Variants {
		items[i] = components.MenuItem{
			Label:  v.Label(),
			Hint:   s.hint(v, current),
			Action: s.selectCmd(v),
		}
	}
	s.menu = components.NewMenu(items)
	for i, v := range llm.Variants {
		if v == current {
			s.menu.Selected = i
		}
	}
	return s
}

func (s *ModelsScreen) hint(v, current llm.Variant) string {
	var parts []string
	if v == current {
		parts = append(parts, "current")
	}
	if s.configured != nil && !s.configured(v) {
		parts = append(parts, "not set up")
	}
	return strings.Join(parts, ", ")
}

func (s *ModelsScreen) selectCmd(v llm.Variant) func() tea.Cmd {
	return func() tea.Cmd {
		session := s.session
		return func() tea.Msg {
			return selectedMsg{Variant: v, Err: session.SelectModel(v)}
		}
	}
}

func (s *ModelsScreen) Init() tea.Cmd {
	return nil
}

func (s *ModelsScreen) Title() string {
	return "Models"
}

func (s *ModelsScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Use"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *ModelsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case selectedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		return s, func() tea.Msg { return router.PopScreenMsg{} }

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
		s.errMsg = ""
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *ModelsScreen) View(width, height int) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(theme.Title.Render("  Vision model"))
	b.WriteString("\n\n")
	b.WriteString(s.menu.View())
	if s.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.Bad.Render("  " + s.errMsg))
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}
