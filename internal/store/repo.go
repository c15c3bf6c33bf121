package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // LLM events only; empty matches all
	Session string    // empty matches all
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	SessionID    string // empty for calls made outside a session
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMPurposeUsage aggregates token usage for one purpose.
type LLMPurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates token usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// PhotoEventData records that a photo entered a session. Image bytes are
// never stored.
type PhotoEventData struct {
	SessionID  string
	Index      uint64
	SizeBytes  int
	ReceivedAt time.Time
}

// QueryEventData records one answered (or failed) question.
type QueryEventData struct {
	SessionID    string
	Variant      string
	Question     string
	PhotoCount   int
	Answer       string
	ErrorMessage string
	LatencyMs    int64
}

// QueryEventRecord is a stored query event.
type QueryEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	QueryEventData
}

// EventRepo provides append and query access to events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns one LLM event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates tokens and latency per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMPurposeUsage, error)

	// LLMUsageByModel aggregates tokens per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)

	// AppendPhotoEvent records photo metadata.
	AppendPhotoEvent(ctx context.Context, data PhotoEventData) error

	// AppendQueryEvent records a question and its outcome.
	AppendQueryEvent(ctx context.Context, data QueryEventData) error

	// QueryQueryEvents returns query events, newest first.
	QueryQueryEvents(ctx context.Context, opts QueryOpts) ([]QueryEventRecord, error)

	// PhotoCount returns the number of photos recorded for a session, or
	// across all sessions when sessionID is empty.
	PhotoCount(ctx context.Context, sessionID string) (int, error)
}
