package device

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/snapask/internal/chunk"
	"github.com/abhisek/snapask/internal/photo"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.Backoff.InitialWait = 10 * time.Millisecond
	cfg.Backoff.MaxWait = 20 * time.Millisecond
	return cfg
}

func runLink(t *testing.T, l *Link, handle Handler) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, handle) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	}
}

func TestLink_CaptureOnceDeliversPhoto(t *testing.T) {
	img := bytes.Repeat([]byte("jpeg"), 200)
	srv := httptest.NewServer(&Simulator{Images: [][]byte{img}, ChunkSize: 64})
	defer srv.Close()

	r := chunk.NewReassembler()
	photos := make(chan photo.Photo, 1)
	l := NewLink(fastConfig(wsURL(srv)))
	stop := runLink(t, l, func(b []byte) {
		if p, ok := r.OnNotification(b); ok {
			photos <- p
		}
	})
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.WaitConnected(ctx))
	require.NoError(t, l.CaptureOnce(ctx))

	select {
	case p := <-photos:
		assert.Equal(t, img, p.Data)
		assert.EqualValues(t, 1, p.Index)
	case <-ctx.Done():
		t.Fatal("no photo received")
	}

	st := l.Stats()
	assert.EqualValues(t, 1, st.Connects)
	assert.EqualValues(t, len(chunk.Split(img, 64)), st.Messages)
}

func TestLink_SendWithoutConnection(t *testing.T) {
	l := NewLink(DefaultConfig("ws://127.0.0.1:1/notify"))
	assert.ErrorIs(t, l.CaptureOnce(context.Background()), ErrNotConnected)
	assert.False(t, l.Connected())
}

func TestLink_ReconnectsAfterDrop(t *testing.T) {
	var (
		mu    sync.Mutex
		conns int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		first := conns == 1
		mu.Unlock()
		if first {
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := NewLink(fastConfig(wsURL(srv)))
	stop := runLink(t, l, nil)
	defer stop()

	require.Eventually(t, func() bool {
		return l.Stats().Connects >= 2 && l.Connected()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLink_GivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	cfg := fastConfig(url)
	cfg.MaxAttempts = 2
	err := NewLink(cfg).Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}

func TestLink_IgnoresTextMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x00, 0xAB})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan []byte, 2)
	l := NewLink(fastConfig(wsURL(srv)))
	stop := runLink(t, l, func(b []byte) { got <- b })
	defer stop()

	select {
	case b := <-got:
		assert.Equal(t, []byte{0x00, 0x00, 0xAB}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}
	assert.EqualValues(t, 1, l.Stats().Messages)
}

func TestBackoff_Capped(t *testing.T) {
	l := NewLink(Config{URL: "ws://x", Backoff: BackoffConfig{
		InitialWait: 100 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2,
	}})

	for attempt, base := range []time.Duration{100, 200, 400, 800, 1000, 1000} {
		base *= time.Millisecond
		got := l.backoff(attempt)
		assert.GreaterOrEqual(t, got, base, "attempt %d", attempt)
		assert.LessOrEqual(t, got, base+base/4, "attempt %d", attempt)
	}
}

func TestLink_SendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case got <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	l := NewLink(fastConfig(wsURL(srv)), WithHeader(http.Header{"Authorization": {"Bearer cam-1"}}))
	stop := runLink(t, l, func([]byte) {})
	defer stop()

	select {
	case h := <-got:
		assert.Equal(t, "Bearer cam-1", h)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never dialed")
	}
}
