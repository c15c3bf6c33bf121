package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/snapask/internal/screen"
)

// stubScreen is a minimal screen for testing.
type stubScreen struct {
	title   string
	initRan bool
}

func (s *stubScreen) Init() tea.Cmd {
	s.initRan = true
	return nil
}
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubScreen) View(int, int) string                    { return s.title }
func (s *stubScreen) Title() string                           { return s.title }

func TestPush(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)

	if r.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", r.Depth())
	}
	if r.Active().Title() != "second" {
		t.Errorf("expected active 'second', got %q", r.Active().Title())
	}
	if !s2.initRan {
		t.Error("expected Init() to run on pushed screen")
	}
}

func TestPop(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	s2 := &stubScreen{title: "second"}
	r.Push(s2)
	r.Pop()

	if r.Depth() != 1 {
		t.Errorf("expected depth 1, got %d", r.Depth())
	}
	if r.Active().Title() != "first" {
		t.Errorf("expected active 'first', got %q", r.Active().Title())
	}
}

func TestPopNoopAtBottom(t *testing.T) {
	s1 := &stubScreen{title: "first"}
	r := New(s1)

	r.Pop()

	if r.Depth() != 1 {
		t.Errorf("expected depth 1 after pop at bottom, got %d", r.Depth())
	}
}

func TestPopScreenMsg(t *testing.T) {
	r := New(&stubScreen{title: "ask"})
	r.Push(&stubScreen{title: "history"})

	if cmd := r.Update(PopScreenMsg{}); cmd != nil {
		t.Error("pop should not return a command")
	}
	if r.Active().Title() != "ask" {
		t.Errorf("active = %q, want ask", r.Active().Title())
	}
}

func TestViewRendersActive(t *testing.T) {
	r := New(&stubScreen{title: "ask"})
	r.Push(&stubScreen{title: "models"})
	if got := r.View(80, 20); got != "models" {
		t.Errorf("View = %q, want models", got)
	}
}

type pingMsg struct{}

func (pingMsg) Broadcast() {}

// countingScreen records how many messages it has seen.
type countingScreen struct {
	stubScreen
	seen int
}

func (s *countingScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) {
	s.seen++
	return s, nil
}

func TestBroadcastReachesEveryScreen(t *testing.T) {
	bottom := &countingScreen{stubScreen: stubScreen{title: "ask"}}
	top := &countingScreen{stubScreen: stubScreen{title: "history"}}
	r := New(bottom)
	r.Push(top)

	r.Update(pingMsg{})
	if bottom.seen != 1 || top.seen != 1 {
		t.Errorf("seen = %d/%d, want 1/1", bottom.seen, top.seen)
	}

	r.Update(tea.KeyPressMsg{Code: 'x'})
	if bottom.seen != 1 || top.seen != 2 {
		t.Errorf("plain message seen = %d/%d, want 1/2", bottom.seen, top.seen)
	}
}

func TestBottomStaysAfterPush(t *testing.T) {
	r := New(&stubScreen{title: "ask"})
	r.Push(&stubScreen{title: "models"})
	if r.Bottom().Title() != "ask" {
		t.Errorf("Bottom() = %q, want ask", r.Bottom().Title())
	}
}
