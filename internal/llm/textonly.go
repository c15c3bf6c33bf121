package llm

import (
	"context"
	"fmt"
)

const textOnlyInstruction = `You cannot see images. The user is asking about photos taken by a camera ` +
	`that were not shared with you. Say plainly that you cannot see the photos, then help as far as ` +
	`the question allows from text alone.`

// TextOnlyProvider is a decorator that removes image attachments and tells
// the model it cannot see them.
type TextOnlyProvider struct {
	inner Provider
}

// WithTextOnly wraps a Provider so it never receives images.
func WithTextOnly(p Provider) Provider {
	return &TextOnlyProvider{inner: p}
}

func (t *TextOnlyProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	stripped := req
	stripped.Messages = make([]Message, len(req.Messages))
	dropped := 0
	for i, m := range req.Messages {
		dropped += len(m.Images)
		m.Images = nil
		stripped.Messages[i] = m
	}

	note := textOnlyInstruction
	if dropped > 0 {
		note += fmt.Sprintf(" (%d photo(s) were withheld.)", dropped)
	}
	if stripped.System == "" {
		stripped.System = note
	} else {
		stripped.System = stripped.System + "\n\n" + note
	}

	return t.inner.Generate(ctx, stripped)
}

func (t *TextOnlyProvider) ModelID() string {
	return t.inner.ModelID()
}
