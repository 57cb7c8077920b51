package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/metrics"
)

var errEmptyCompletion = errors.New("empty completion")

// Failover tries providers in order, falling back to the next on error.
type Failover struct {
	providers []Provider
	// timeout bounds each provider call. Zero means no per-call limit.
	timeout time.Duration
	log     *zap.Logger
}

func NewFailover(providers []Provider, timeout time.Duration, log *zap.Logger) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	return &Failover{providers: providers, timeout: timeout, log: log}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

// Complete returns the first successful response. A cancelled ctx stops the
// chain and is returned as is.
func (f *Failover) Complete(ctx context.Context, req Request) (Response, error) {
	if len(f.providers) == 0 {
		return Response{}, fmt.Errorf("%w: no providers configured", ErrModelUnavailable)
	}

	var lastErr error
	for i, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		resp, err := f.call(ctx, p, req)
		if err == nil {
			if i > 0 {
				f.log.Info("failover: used fallback provider",
					zap.String("provider", p.Name()),
					zap.Int("attempt", i+1))
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		lastErr = err
		f.log.Warn("failover: provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Int("attempt", i+1),
			zap.Error(err))
	}
	return Response{}, fmt.Errorf("%w: all providers in failover chain failed: %w", ErrModelUnavailable, lastErr)
}

func (f *Failover) call(ctx context.Context, p Provider, req Request) (Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := p.Complete(ctx, req)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errEmptyCompletion
	}
	metrics.RecordModelCall(p.Name(), err, time.Since(start))
	if err != nil {
		return Response{}, err
	}
	if resp.Model == "" {
		resp.Model = p.Name()
	}
	return resp, nil
}

// InvokeFunc adapts the chain to the engine's model closure.
func (f *Failover) InvokeFunc(temperature float64, maxTokens int) func(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
		resp, err := f.Complete(ctx, Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			Temperature:  temperature,
			MaxTokens:    maxTokens,
		})
		if err != nil {
			return "", "", err
		}
		return resp.Text, resp.Model, nil
	}
}
