package router

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/snapask/internal/screen"
)

// PopScreenMsg asks the router to close the active screen.
type PopScreenMsg struct{}

// Broadcast marks messages that every screen on the stack receives, not only
// the active one. The ask screen relies on it to keep tracking the session
// while the models or history screen is open.
type Broadcast interface {
	Broadcast()
}

// Router is a stack of screens. The bottom screen is never popped.
type Router struct {
	stack []screen.Screen
}

func New(bottom screen.Screen) *Router {
	return &Router{stack: []screen.Screen{bottom}}
}

// Push shows s on top and returns its Init command.
func (r *Router) Push(s screen.Screen) tea.Cmd {
	r.stack = append(r.stack, s)
	return s.Init()
}

// Pop drops the active screen unless it is the bottom one.
func (r *Router) Pop() {
	if len(r.stack) > 1 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

func (r *Router) Active() screen.Screen {
	return r.stack[len(r.stack)-1]
}

func (r *Router) Bottom() screen.Screen {
	return r.stack[0]
}

func (r *Router) Depth() int {
	return len(r.stack)
}

// Update routes msg: PopScreenMsg pops, a Broadcast goes to every screen
// bottom-up, anything else to the active screen only.
func (r *Router) Update(msg tea.Msg) tea.Cmd {
	switch msg.(type) {
	case PopScreenMsg:
		r.Pop()
		return nil
	case Broadcast:
		cmds := make([]tea.Cmd, len(r.stack))
		for i, s := range r.stack {
			r.stack[i], cmds[i] = s.Update(msg)
		}
		return tea.Batch(cmds...)
	}

	top := len(r.stack) - 1
	var cmd tea.Cmd
	r.stack[top], cmd = r.stack[top].Update(msg)
	return cmd
}

func (r *Router) View(width, height int) string {
	return r.Active().View(width, height)
}
