// Package agent holds a question-answering session over recently captured
// photos. Photo accumulation and query dispatch share one exclusive-access
// queue; observers are notified after every committed state change.
package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/snapask/internal/llm"
	"github.com/abhisek/snapask/internal/lockq"
	"github.com/abhisek/snapask/internal/photo"
	"github.com/abhisek/snapask/internal/store"
)

// DefaultMaxPhotos caps the photos a session sends with a question.
const DefaultMaxPhotos = photo.DefaultCapacity

// Phase is the state of the most recent query.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseAnswered
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseAnswered:
		return "answered"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Snapshot is an immutable view of the session. At most one of Answer and
// Error is non-empty.
type Snapshot struct {
	SessionID  string      `json:"session_id"`
	Phase      Phase       `json:"-"`
	PhaseName  string      `json:"phase"`
	Loading    bool        `json:"loading"`
	Question   string      `json:"question,omitempty"`
	Answer     string      `json:"answer,omitempty"`
	Error      string      `json:"error,omitempty"`
	PhotoCount int         `json:"photo_count"`
	LastPhoto  uint64      `json:"last_photo,omitempty"`
	Status     string      `json:"status"`
	Variant    llm.Variant `json:"variant"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Backends resolves a variant to the capability that answers questions.
// *llm.Registry satisfies it.
type Backends interface {
	Backend(ctx context.Context, v llm.Variant) (llm.Vision, error)
	IsConfigured(v llm.Variant) bool
}

// validator is optionally implemented by Backends to explain why a variant
// is not configured.
type validator interface {
	Validate(v llm.Variant) error
}

// describers is optionally implemented by Backends to support Describe.
type describers interface {
	Describer(ctx context.Context, v llm.Variant) (llm.Describer, error)
}

// Recorder stores photo metadata and query history.
type Recorder interface {
	AppendPhotoEvent(ctx context.Context, data store.PhotoEventData) error
	AppendQueryEvent(ctx context.Context, data store.QueryEventData) error
}

// Config holds session settings.
type Config struct {
	// MaxPhotos caps the accumulated photos; the oldest are dropped.
	MaxPhotos int
	// Variant is the initially selected backend.
	Variant llm.Variant
	// SessionID labels recorded events. Generated when empty.
	SessionID string
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithRecorder stores photo and query events.
func WithRecorder(r Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// Agent is one question-answering session.
type Agent struct {
	cfg      Config
	backends Backends
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	// queue guards photos and serializes backend dispatch.
	queue  lockq.Queue
	photos []photo.Photo

	// mu guards the query fields; it is never held while waiting on queue.
	mu       sync.Mutex
	phase    Phase
	loading  bool
	question string
	answer   string
	errMsg   string
	variant  llm.Variant
	count    int
	last     uint64
	status   string

	published atomic.Pointer[Snapshot]
	observers observers
}

// New creates an idle session.
func New(cfg Config, backends Backends, opts ...Option) *Agent {
	if cfg.MaxPhotos < 1 {
		cfg.MaxPhotos = DefaultMaxPhotos
	}
	if cfg.Variant == "" {
		cfg.Variant = llm.VariantRemote
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	a := &Agent{
		cfg:      cfg,
		backends: backends,
		logger:   zap.NewNop(),
		now:      time.Now,
		variant:  cfg.Variant,
		status:   "Waiting for photos",
	}
	for _, o := range opts {
		o(a)
	}
	a.logger = a.logger.With(zap.String("component", "agent"), zap.String("session", cfg.SessionID))

	a.mu.Lock()
	a.publishLocked()
	a.mu.Unlock()
	return a
}

// SessionID identifies this session in recorded events.
func (a *Agent) SessionID() string {
	return a.cfg.SessionID
}

// Snapshot returns the last published state without locking.
func (a *Agent) Snapshot() Snapshot {
	return *a.published.Load()
}

// Subscribe registers fn to run after every state change and returns a
// function that removes it. Callbacks run synchronously on the goroutine
// that committed the change; they must not block.
func (a *Agent) Subscribe(fn func()) (unsubscribe func()) {
	return a.observers.add(fn)
}

// Photos returns a copy of the accumulated photos.
func (a *Agent) Photos(ctx context.Context) ([]photo.Photo, error) {
	return lockq.InLock(ctx, &a.queue, func(context.Context) ([]photo.Photo, error) {
		return slices.Clone(a.photos), nil
	})
}

// AddPhotos appends batch to the session under the queue, dropping the
// oldest photos beyond Config.MaxPhotos.
func (a *Agent) AddPhotos(ctx context.Context, batch []photo.Photo) error {
	if len(batch) == 0 {
		return nil
	}

	err := a.queue.Do(ctx, func(context.Context) error {
		a.photos = append(a.photos, batch...)
		if over := len(a.photos) - a.cfg.MaxPhotos; over > 0 {
			a.photos = slices.Delete(a.photos, 0, over)
		}

		a.mu.Lock()
		a.count = len(a.photos)
		a.last = a.photos[len(a.photos)-1].Index
		a.status = statusFor(a.count)
		a.publishLocked()
		a.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("add photos: %w", err)
	}

	a.logger.Debug("photos added", zap.Int("batch", len(batch)), zap.Uint64("last", batch[len(batch)-1].Index))
	a.observers.notify()

	if a.recorder != nil {
		for _, p := range batch {
			if err := a.recorder.AppendPhotoEvent(ctx, store.PhotoEventData{
				SessionID:  a.cfg.SessionID,
				Index:      p.Index,
				SizeBytes:  p.Size(),
				ReceivedAt: p.ReceivedAt,
			}); err != nil {
				a.logger.Warn("failed to record photo event", zap.Error(err))
			}
		}
	}
	return nil
}

// Answer asks the selected backend about the accumulated photos and returns
// the resulting snapshot. It blocks until the query completes.
//
// A call while another query is loading is a no-op and returns the current
// snapshot. A backend that is not configured fails immediately without
// entering the loading state.
func (a *Agent) Answer(ctx context.Context, question string) Snapshot {
	a.mu.Lock()
	if a.loading {
		snap := a.Snapshot()
		a.mu.Unlock()
		a.logger.Debug("answer ignored: query in flight")
		return snap
	}
	v := a.variant

	if !slices.Contains(llm.Variants, v) {
		a.finishLocked(question, "", msgGeneric)
		a.mu.Unlock()
		a.logger.Error("unknown variant selected", zap.String("variant", string(v)))
		a.observers.notify()
		return a.Snapshot()
	}
	if !a.backends.IsConfigured(v) {
		var cause error
		if val, ok := a.backends.(validator); ok {
			cause = val.Validate(v)
		}
		a.finishLocked(question, "", configMessage(v, cause))
		a.mu.Unlock()
		a.logger.Warn("backend not configured", zap.String("variant", string(v)))
		a.observers.notify()
		a.record(ctx, v, question, 0, "", a.Snapshot().Error, 0)
		return a.Snapshot()
	}

	a.loading = true
	a.phase = PhaseLoading
	a.question = question
	a.answer = ""
	a.errMsg = ""
	a.publishLocked()
	a.mu.Unlock()
	a.observers.notify()

	start := a.now()
	var photoCount int
	answer, err := lockq.InLock(llm.WithSession(ctx, a.cfg.SessionID), &a.queue, func(ctx context.Context) (string, error) {
		photoCount = len(a.photos)
		if photoCount == 0 {
			return NoPhotosAnswer, nil
		}

		backend, err := a.backends.Backend(ctx, v)
		if err != nil {
			return "", err
		}
		images := make([][]byte, len(a.photos))
		for i, p := range a.photos {
			images[i] = p.Data
		}
		return backend.AnalyzeImages(ctx, images, question)
	})
	latency := a.now().Sub(start)

	var errMsg string
	if err != nil {
		errMsg = classify(v, err)
		a.logger.Warn("answer failed", zap.String("variant", string(v)), zap.Error(err))
	} else {
		a.logger.Info("answered",
			zap.String("variant", string(v)),
			zap.Int("photos", photoCount),
			zap.Duration("latency", latency))
	}

	a.mu.Lock()
	a.loading = false
	a.finishLocked(question, answer, errMsg)
	snap := a.Snapshot()
	a.mu.Unlock()
	a.observers.notify()

	a.record(ctx, v, question, photoCount, snap.Answer, snap.Error, latency.Milliseconds())
	return snap
}

// SelectModel switches the backend variant for later queries.
func (a *Agent) SelectModel(v llm.Variant) error {
	if !slices.Contains(llm.Variants, v) {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}

	a.mu.Lock()
	if a.loading {
		a.mu.Unlock()
		return ErrQueryInFlight
	}
	a.variant = v
	a.publishLocked()
	a.mu.Unlock()

	a.logger.Info("model selected", zap.String("variant", string(v)))
	a.observers.notify()
	return nil
}

// Describe returns a structured description of the most recent photo using
// the selected backend.
func (a *Agent) Describe(ctx context.Context) (*llm.Description, error) {
	a.mu.Lock()
	v := a.variant
	a.mu.Unlock()

	if v == llm.VariantTextOnly {
		return nil, ErrDescribeUnsupported
	}
	ds, ok := a.backends.(describers)
	if !ok {
		return nil, ErrDescribeUnsupported
	}

	return lockq.InLock(llm.WithSession(ctx, a.cfg.SessionID), &a.queue, func(ctx context.Context) (*llm.Description, error) {
		if len(a.photos) == 0 {
			return nil, ErrNoPhotos
		}
		d, err := ds.Describer(ctx, v)
		if err != nil {
			return nil, err
		}
		return d.Describe(ctx, a.photos[len(a.photos)-1].Data)
	})
}

// finishLocked commits a completed query. a.mu must be held.
func (a *Agent) finishLocked(question, answer, errMsg string) {
	a.question = question
	if errMsg != "" {
		a.phase = PhaseErrored
		a.answer = ""
		a.errMsg = errMsg
	} else {
		a.phase = PhaseAnswered
		a.answer = answer
		a.errMsg = ""
	}
	a.publishLocked()
}

// publishLocked stores a fresh immutable snapshot. a.mu must be held.
func (a *Agent) publishLocked() {
	a.published.Store(&Snapshot{
		SessionID:  a.cfg.SessionID,
		Phase:      a.phase,
		PhaseName:  a.phase.String(),
		Loading:    a.loading,
		Question:   a.question,
		Answer:     a.answer,
		Error:      a.errMsg,
		PhotoCount: a.count,
		LastPhoto:  a.last,
		Status:     a.status,
		Variant:    a.variant,
		UpdatedAt:  a.now(),
	})
}

func (a *Agent) record(ctx context.Context, v llm.Variant, question string, photos int, answer, errMsg string, latencyMs int64) {
	if a.recorder == nil {
		return
	}
	err := a.recorder.AppendQueryEvent(ctx, store.QueryEventData{
		SessionID:    a.cfg.SessionID,
		Variant:      string(v),
		Question:     question,
		PhotoCount:   photos,
		Answer:       answer,
		ErrorMessage: errMsg,
		LatencyMs:    latencyMs,
	})
	if err != nil {
		a.logger.Warn("failed to record query event", zap.Error(err))
	}
}

func statusFor(n int) string {
	if n == 1 {
		return "1 photo ready"
	}
	return fmt.Sprintf("%d photos ready", n)
}
