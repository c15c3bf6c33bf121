package device

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/chunk"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Simulator is a bridge stand-in serving a fixed set of images. It answers
// CommandCaptureOnce with the next image, split into chunk notifications,
// and CommandCaptureInterval by sending one image per Interval until the
// client disconnects or sends CommandCaptureOnce.
type Simulator struct {
	Images    [][]byte
	ChunkSize int           // payload bytes per notification. Default: 180.
	Interval  time.Duration // periodic capture interval. Default: 5s.
	Logger    *zap.Logger

	mu   sync.Mutex
	next int
}

// ServeHTTP upgrades the request and serves one camera session.
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "simulator"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	var (
		writeMu sync.Mutex
		stop    chan struct{}
	)
	send := func() error {
		img := s.nextImage()
		if img == nil {
			return nil
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		for _, n := range chunk.Split(img, s.chunkSize()) {
			if err := conn.WriteMessage(websocket.BinaryMessage, n); err != nil {
				return err
			}
		}
		return nil
	}
	stopInterval := func() {
		if stop != nil {
			close(stop)
			stop = nil
		}
	}
	defer stopInterval()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("client disconnected", zap.Error(err))
			return
		}
		if kind != websocket.BinaryMessage || len(data) != 1 {
			continue
		}

		switch data[0] {
		case CommandCaptureOnce:
			stopInterval()
			if err := send(); err != nil {
				logger.Warn("send failed", zap.Error(err))
				return
			}
		case CommandCaptureInterval:
			stopInterval()
			stop = make(chan struct{})
			go func(stop <-chan struct{}) {
				t := time.NewTicker(s.interval())
				defer t.Stop()
				for {
					if err := send(); err != nil {
						return
					}
					select {
					case <-t.C:
					case <-stop:
						return
					}
				}
			}(stop)
		default:
			logger.Debug("unknown command", zap.Uint8("command", data[0]))
		}
	}
}

func (s *Simulator) nextImage() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Images) == 0 {
		return nil
	}
	img := s.Images[s.next%len(s.Images)]
	s.next++
	return img
}

func (s *Simulator) chunkSize() int {
	if s.ChunkSize > 0 {
		return s.ChunkSize
	}
	return 180
}

func (s *Simulator) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return 5 * time.Second
}
