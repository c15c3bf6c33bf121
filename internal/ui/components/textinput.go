package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/snapask/internal/ui/theme"
)

// QuestionInput wraps bubbles/textinput with a prompt and a disabled state
// used while an answer is loading.
type QuestionInput struct {
	Model    textinput.Model
	Disabled bool
}

// NewQuestionInput creates a focused input.
func NewQuestionInput(placeholder string, charLimit int) QuestionInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "? "
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	ti.Focus()
	return QuestionInput{Model: ti}
}

// Init returns the initial command.
func (q QuestionInput) Init() tea.Cmd {
	return q.Model.Focus()
}

// Update forwards messages to the input unless it is disabled.
func (q QuestionInput) Update(msg tea.Msg) (QuestionInput, tea.Cmd) {
	if q.Disabled {
		return q, nil
	}
	var cmd tea.Cmd
	q.Model, cmd = q.Model.Update(msg)
	return q, cmd
}

// View renders the input.
func (q QuestionInput) View() string {
	if q.Disabled {
		return lipgloss.NewStyle().Foreground(theme.TextDim).Render("? " + q.Model.Value())
	}
	return q.Model.View()
}

// Value returns the trimmed input.
func (q QuestionInput) Value() string {
	return strings.TrimSpace(q.Model.Value())
}

// Clear empties the input.
func (q *QuestionInput) Clear() {
	q.Model.Reset()
}
