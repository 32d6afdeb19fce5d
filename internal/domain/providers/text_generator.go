package providers

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited is returned when the model API keeps rejecting requests for quota reasons.
	ErrRateLimited = errors.New("generation rate limited")

	// ErrProviderError covers every other failed generation call.
	ErrProviderError = errors.New("generation provider error")

	// ErrGenerationUnauthorized indicates the API key was rejected.
	ErrGenerationUnauthorized = errors.New("generation unauthorized")
)

// TextGenerator produces free text from a role instruction, an assistant
// priming message and a task prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, assistant, prompt string) (string, error)
}
