// Package invoker calls GenAI models: a provider contract, primary to
// secondary failover and an OpenAI-compatible HTTP provider.
package invoker

import (
	"context"
	"errors"
)

// ErrModelUnavailable is wrapped by every error returned once all providers
// in a chain have failed.
var ErrModelUnavailable = errors.New("model unavailable")

type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

type Response struct {
	Text  string
	Model string
}

// Provider completes one prompt. Implementations must honour ctx.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
