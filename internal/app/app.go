package app

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/router"
	"github.com/abhisek/snapask/internal/screen"
	"github.com/abhisek/snapask/internal/screens/ask"
	"github.com/abhisek/snapask/internal/screens/history"
	"github.com/abhisek/snapask/internal/screens/models"
	"github.com/abhisek/snapask/internal/ui/layout"
)

// Options wires the terminal UI to a running session.
type Options struct {
	Agent *agent.Agent

	// Configured reports backend setup state on the models screen.
	Configured func(v llm.Variant) bool

	// Camera is optional; capture keys are disabled without it.
	Camera ask.Camera

	// History is optional; the history screen is unavailable without it.
	History history.Queries

	MaxPhotos int
	Logger    *zap.Logger
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	opts   Options
	width  int
	height int
}

// newAppModel creates a new AppModel with the ask screen.
func newAppModel(opts Options, main *ask.Screen) AppModel {
	return AppModel{
		router: router.New(main),
		opts:   opts,
	}
}

func (m AppModel) Init() tea.Cmd {
	return m.router.Active().Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		case "ctrl+l":
			if m.router.Depth() == 1 {
				return m, m.router.Push(models.New(m.opts.Agent, m.opts.Configured))
			}
		case "ctrl+r":
			if m.router.Depth() == 1 && m.opts.History != nil {
				return m, m.router.Push(history.New(m.opts.History))
			}
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if m.width == 0 || m.height == 0 {
		return v
	}
	v.SetContent(m.render())
	return v
}

// render draws the full frame for the current window size.
func (m AppModel) render() string {
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	active := m.router.Active()
	title, status := "", ""
	if active != nil {
		title = active.Title()
	}
	// The ask screen sits at the bottom of the stack and owns the status.
	if sp, ok := m.router.Bottom().(screen.StatusProvider); ok {
		status = sp.Status()
	}

	header := layout.RenderHeader(title, status, m.width)

	var footerHints []layout.KeyHint
	if kp, ok := active.(screen.KeyHintProvider); ok {
		footerHints = kp.KeyHints()
	} else {
		footerHints = []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}

	footer := layout.RenderFooter(footerHints, m.width)

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

// Run starts the Bubble Tea program and blocks until the user quits.
func Run(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxPhotos <= 0 {
		opts.MaxPhotos = agent.DefaultMaxPhotos
	}

	main := ask.New(opts.Agent, opts.Camera, opts.MaxPhotos)
	defer main.Close()

	p := tea.NewProgram(newAppModel(opts, main))
	_, err := p.Run()
	if err != nil {
		opts.Logger.Error("terminal ui failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
