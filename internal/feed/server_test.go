package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/snapask/internal/agent"
	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/photo"
)

type echoVision struct{}

func (echoVision) AnalyzeImages(_ context.Context, images [][]byte, q string) (string, error) {
	return "saw " + q, nil
}

type staticBackends struct{}

func (staticBackends) Backend(context.Context, llm.Variant) (llm.Vision, error) {
	return echoVision{}, nil
}

func (staticBackends) IsConfigured(llm.Variant) bool { return true }

type fakeCamera struct {
	mu    sync.Mutex
	modes []string
}

func (c *fakeCamera) CaptureOnce(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modes = append(c.modes, "once")
	return nil
}

func (c *fakeCamera) CaptureInterval(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modes = append(c.modes, "interval")
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (*agent.Agent, *Server, *httptest.Server) {
	t.Helper()
	a := agent.New(agent.Config{SessionID: "test"}, staticBackends{})
	s := NewServer(a, opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return a, s, srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestServer_Snapshot(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeSnapshot(t, resp)
	assert.Equal(t, "idle", m["phase"])
	assert.Equal(t, "test", m["session_id"])
	assert.Equal(t, "remote", m["variant"])
}

func TestServer_Ask(t *testing.T) {
	a, _, srv := newTestServer(t)
	require.NoError(t, a.AddPhotos(context.Background(), []photo.Photo{{Index: 1, Data: []byte{1}}}))

	resp := post(t, srv.URL+"/ask", `{"question":"what is it?"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeSnapshot(t, resp)
	assert.Equal(t, "saw what is it?", m["answer"])
	assert.Equal(t, "answered", m["phase"])

	resp = post(t, srv.URL+"/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Model(t *testing.T) {
	a, _, srv := newTestServer(t)

	resp := post(t, srv.URL+"/model", `{"variant":"local"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, llm.VariantLocal, a.Snapshot().Variant)

	resp = post(t, srv.URL+"/model", `{"variant":"quantum"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Capture(t *testing.T) {
	_, _, srv := newTestServer(t)
	resp := post(t, srv.URL+"/capture", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cam := &fakeCamera{}
	_, _, srv = newTestServer(t, WithCamera(cam))
	assert.Equal(t, http.StatusAccepted, post(t, srv.URL+"/capture", `{"mode":"interval"}`).StatusCode)
	assert.Equal(t, http.StatusAccepted, post(t, srv.URL+"/capture", ``).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL+"/capture", `{"mode":"burst"}`).StatusCode)
	assert.Equal(t, []string{"interval", "once"}, cam.modes)
}

func TestServer_Stats(t *testing.T) {
	_, _, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _, srv = newTestServer(t, WithStats(func() any { return map[string]int{"photos": 3} }))
	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var m map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, 3, m["photos"])
}

func TestServer_StateStreamsSnapshots(t *testing.T) {
	a, s, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/state", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() map[string]any {
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		return m
	}

	initial := read()
	assert.Equal(t, "idle", initial["phase"])
	require.Eventually(t, func() bool { return s.Viewers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.AddPhotos(context.Background(), []photo.Photo{{Index: 7, Data: []byte{1}}}))
	a.Answer(context.Background(), "hi")

	// Slow viewers may skip intermediate snapshots but always see the last.
	for {
		m := read()
		if m["phase"] == "answered" {
			assert.Equal(t, "saw hi", m["answer"])
			assert.EqualValues(t, 1, m["photo_count"])
			break
		}
	}
}

func TestOffer_KeepsLatest(t *testing.T) {
	ch := make(chan []byte, 1)
	offer(ch, []byte("a"))
	offer(ch, []byte("b"))
	assert.Equal(t, "b", string(<-ch))
}
