package llm

import "context"

// Purposes recorded with LLM request events.
const (
	PurposeAnswer   = "answer"
	PurposeDescribe = "describe"
)

type contextKey int

const (
	purposeKey contextKey = iota
	sessionKey
)

// WithPurpose labels requests made with ctx, e.g. PurposeAnswer.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose label, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithSession tags requests made with ctx with the session that asked.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionFrom returns the session tag, or "".
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}
