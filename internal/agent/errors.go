package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/snapask/internal/llm"
)

var (
	// ErrQueryInFlight rejects a model switch while a question is loading.
	ErrQueryInFlight = errors.New("a question is already being answered")

	// ErrUnknownVariant reports a model variant with no backend.
	ErrUnknownVariant = errors.New("unknown model variant")

	// ErrNoPhotos is returned by Describe when nothing has been captured.
	ErrNoPhotos = errors.New("no photos yet")

	// ErrDescribeUnsupported is returned by Describe for backends that
	// cannot produce structured descriptions.
	ErrDescribeUnsupported = errors.New("selected model cannot describe photos")
)

// User-facing messages.
const (
	NoPhotosAnswer = "No photos yet. Take a photo with the camera, then ask again."

	msgUnauthorized = "The AI service rejected the API key. Check your credentials and try again."
	msgRateLimited  = "The AI service is busy (rate limited). Wait a moment and try again."
	msgBilling      = "The AI account is out of credit or quota. Check billing for your provider."
	msgNetwork      = "Could not reach the AI service. Check your network connection and try again."
	msgProtocol     = "The AI service sent a response that could not be understood. Try again."
	msgTruncated    = "The answer was too long and got cut off. Try a narrower question."
	msgGeneric      = "Something went wrong while answering. Try again."
)

// configMessage is shown when the selected variant is missing settings.
func configMessage(v llm.Variant, err error) string {
	var cfgErr *llm.ConfigError
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("%s is not set up: %s.", v.Label(), cfgErr.Msg)
	}
	return fmt.Sprintf("%s is not set up. Add its settings and try again.", v.Label())
}

// classify maps a backend failure to the message stored in the session.
// Raw transport errors never reach the user.
func classify(v llm.Variant, err error) string {
	var (
		unauth  *llm.ErrUnauthorized
		rate    *llm.ErrRateLimit
		billing *llm.ErrBilling
		unavail *llm.ErrProviderUnavailable
		invalid *llm.ErrInvalidResponse
		maxTok  *llm.ErrMaxTokensExceeded
		cfgErr  *llm.ConfigError
	)
	switch {
	case errors.As(err, &cfgErr):
		return configMessage(v, err)
	case errors.As(err, &unauth):
		return msgUnauthorized
	case errors.As(err, &billing):
		return msgBilling
	case errors.As(err, &rate):
		return msgRateLimited
	case errors.As(err, &maxTok):
		return msgTruncated
	case errors.As(err, &invalid):
		return msgProtocol
	case errors.As(err, &unavail),
		errors.Is(err, context.DeadlineExceeded):
		return msgNetwork
	default:
		return msgGeneric
	}
}
