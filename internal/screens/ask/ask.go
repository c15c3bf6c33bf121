// Package ask is the main screen: it shows the session's photo count and
// latest answer, and sends questions typed by the user.
package ask

import (
	"context"
	"fmt"
	"slices"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/screen"
	"github.com/abhisek/snapask/internal/ui/components"
	"github.com/abhisek/snapask/internal/ui/layout"
)

// Session is the part of *agent.Agent the screen drives.
type Session interface {
	Snapshot() agent.Snapshot
	Subscribe(fn func()) (unsubscribe func())
	Answer(ctx context.Context, question string) agent.Snapshot
	SelectModel(v llm.Variant) error
}

// Camera sends capture commands. *device.Link satisfies it.
type Camera interface {
	CaptureOnce(ctx context.Context) error
	CaptureInterval(ctx context.Context) error
}

// ChangedMsg reports that the session published a new snapshot. It is
// delivered to every screen on the stack.
type ChangedMsg struct{}

// Broadcast marks ChangedMsg for delivery to all screens.
func (ChangedMsg) Broadcast() {}

type answeredMsg struct {
	Snapshot agent.Snapshot
}

type captureSentMsg struct {
	Mode string
	Err  error
}

type spinnerTickMsg time.Time

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Screen implements screen.Screen for asking questions.
type Screen struct {
	session     Session
	camera      Camera
	maxPhotos   int
	changes     chan struct{}
	unsubscribe func()

	snap     agent.Snapshot
	input    components.QuestionInput
	notice   string
	noticeOK bool
	frame    int
	spinning bool
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)
var _ screen.StatusProvider = (*Screen)(nil)

// New creates the screen and subscribes it to session changes. camera may
// be nil when no device is attached.
func New(session Session, camera Camera, maxPhotos int) *Screen {
	s := &Screen{
		session:   session,
		camera:    camera,
		maxPhotos: maxPhotos,
		changes:   make(chan struct{}, 1),
		snap:      session.Snapshot(),
		input:     components.NewQuestionInput("Ask about what the camera sees...", 500),
	}
	s.unsubscribe = session.Subscribe(func() {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	})
	return s
}

// Close stops listening for session changes.
func (s *Screen) Close() {
	s.unsubscribe()
}

func (s *Screen) Init() tea.Cmd {
	return tea.Batch(s.input.Init(), s.waitForChange())
}

func (s *Screen) Title() string {
	return "Ask"
}

func (s *Screen) Status() string {
	return fmt.Sprintf("%d photos · %s", s.snap.PhotoCount, s.snap.Variant.Label())
}

func (s *Screen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "Enter", Description: "Ask"},
		{Key: "Ctrl+T", Description: "Model"},
	}
	if s.camera != nil {
		hints = append(hints, layout.KeyHint{Key: "Ctrl+P", Description: "Capture"})
	}
	return append(hints,
		layout.KeyHint{Key: "Ctrl+L", Description: "Models"},
		layout.KeyHint{Key: "Ctrl+R", Description: "History"},
		layout.KeyHint{Key: "Ctrl+C", Description: "Quit"},
	)
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		s.snap = s.session.Snapshot()
		cmds := []tea.Cmd{s.waitForChange()}
		if s.snap.Loading && !s.spinning {
			s.spinning = true
			cmds = append(cmds, spinnerTick())
		}
		return s, tea.Batch(cmds...)

	case answeredMsg:
		s.snap = msg.Snapshot
		s.input.Disabled = false
		return s, nil

	case captureSentMsg:
		if msg.Err != nil {
			s.setNotice(fmt.Sprintf("Capture failed: %v", msg.Err), false)
		} else if msg.Mode == "interval" {
			s.setNotice("Periodic capture started", true)
		} else {
			s.setNotice("Photo requested", true)
		}
		return s, nil

	case spinnerTickMsg:
		if !s.snap.Loading {
			s.spinning = false
			return s, nil
		}
		s.frame = (s.frame + 1) % len(spinnerFrames)
		return s, spinnerTick()

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *Screen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return s.submit()
	case "ctrl+t":
		next := nextVariant(s.snap.Variant)
		if err := s.session.SelectModel(next); err != nil {
			s.setNotice(err.Error(), false)
			return s, nil
		}
		s.setNotice("Model: "+next.Label(), true)
		return s, nil
	case "ctrl+p":
		return s, s.capture("once")
	case "ctrl+g":
		return s, s.capture("interval")
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *Screen) submit() (screen.Screen, tea.Cmd) {
	q := s.input.Value()
	if q == "" {
		return s, nil
	}
	if s.snap.Loading {
		s.setNotice("Still answering the last question", false)
		return s, nil
	}

	s.input.Clear()
	s.input.Disabled = true
	s.notice = ""

	session := s.session
	return s, func() tea.Msg {
		return answeredMsg{Snapshot: session.Answer(context.Background(), q)}
	}
}

func (s *Screen) capture(mode string) tea.Cmd {
	if s.camera == nil {
		s.setNotice("No camera connected", false)
		return nil
	}
	camera := s.camera
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		if mode == "interval" {
			err = camera.CaptureInterval(ctx)
		} else {
			err = camera.CaptureOnce(ctx)
		}
		return captureSentMsg{Mode: mode, Err: err}
	}
}

func (s *Screen) waitForChange() tea.Cmd {
	ch := s.changes
	return func() tea.Msg {
		<-ch
		return ChangedMsg{}
	}
}

func (s *Screen) setNotice(msg string, ok bool) {
	s.notice = msg
	s.noticeOK = ok
}

func nextVariant(v llm.Variant) llm.Variant {
	i := slices.Index(llm.Variants, v)
	return llm.Variants[(i+1)%len(llm.Variants)]
}

func spinnerTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}
