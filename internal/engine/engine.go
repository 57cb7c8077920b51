// Package engine runs a GenAI request through its guardrails: input
// validation, the model call, output validation and the bounded fix loop.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/metrics"
)

var (
	// ErrCancelled is returned when the request context ends mid-run. No
	// execution log entry may be written for a cancelled request.
	ErrCancelled = errors.New("request cancelled")
	// ErrRetryExhausted is recorded on an OUTPUT_REJECTED outcome whose fix
	// guardrails still fail at the retry ceiling.
	ErrRetryExhausted = errors.New("fix retries exhausted")
	// ErrInternal is recorded on a FAILED outcome after a panic in the
	// resolver, the model closure or the engine itself.
	ErrInternal = errors.New("internal engine error")
)

// InvokeFunc calls the model. The engine never retries it.
type InvokeFunc func(ctx context.Context, systemPrompt, userPrompt string) (text, model string, err error)

// Resolver returns the effective guardrails for a function and platform.
type Resolver interface {
	ResolveEffective(ctx context.Context, function, platform string) ([]guardrail.Definition, error)
}

// Evaluator checks one guardrail against one payload.
type Evaluator interface {
	Evaluate(def guardrail.Definition, payload string, dir guardrail.Direction) guardrail.Result
}

type Request struct {
	RequestID    string
	Function     string
	Platform     string
	UserPrompt   string
	SystemPrompt string
}

// Outcome is the terminal result of Process.
type Outcome struct {
	RequestID string
	State     State
	// Output is set only for ACCEPTED.
	Output      string
	ModelUsed   string
	Violations  []guardrail.Result
	RetryCount  int
	FinalAction guardrail.Action
	// Err is set for FAILED and for retry exhaustion.
	Err   error
	Trail []State
}

type Config struct {
	// DefaultRetries caps fix rounds globally. Zero uses guardrail.DefaultMaxRetries.
	DefaultRetries int
	Logger         *zap.Logger
	// Interceptors replace the default Logging, Metrics, Recover chain.
	Interceptors []Interceptor
}

type Engine struct {
	resolver       Resolver
	eval           EvalFunc
	defaultRetries int
	log            *zap.Logger
}

func New(resolver Resolver, evaluator Evaluator, cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	retries := cfg.DefaultRetries
	if retries <= 0 {
		retries = guardrail.DefaultMaxRetries
	}
	interceptors := cfg.Interceptors
	if interceptors == nil {
		interceptors = []Interceptor{Logging(log), Metrics(), Recover(log)}
	}
	base := func(_ context.Context, def guardrail.Definition, payload string, dir guardrail.Direction) guardrail.Result {
		return evaluator.Evaluate(def, payload, dir)
	}
	return &Engine{
		resolver:       resolver,
		eval:           Chain(base, interceptors...),
		defaultRetries: retries,
		log:            log,
	}
}

// Process runs req to a terminal state. The error is non-nil only when ctx
// is cancelled; every other failure is reported as a FAILED outcome.
func (e *Engine) Process(ctx context.Context, req Request, invoke InvokeFunc) (out *Outcome, err error) {
	out = &Outcome{RequestID: req.RequestID, State: StatePending, Trail: []State{StatePending}}

	defer func() {
		if r := recover(); r != nil {
			if it, ok := r.(invalidTransition); ok {
				out.Err = it
			} else {
				e.log.Error("genai request panicked",
					zap.String("request_id", req.RequestID),
					zap.String("function", req.Function),
					zap.String("state", string(out.State)),
					zap.Any("panic", r))
				out.Err = fmt.Errorf("%w: %v", ErrInternal, r)
			}
			out.State, out.Output = StateFailed, ""
			out.Trail = append(out.Trail, StateFailed)
			err = nil
		}
		if err == nil {
			metrics.RecordOutcome(req.Function, string(out.State), out.RetryCount)
			e.log.Info("genai request finished",
				zap.String("request_id", req.RequestID),
				zap.String("function", req.Function),
				zap.String("state", string(out.State)),
				zap.Int("violations", len(out.Violations)),
				zap.Int("retries", out.RetryCount),
				zap.String("model", out.ModelUsed))
		}
	}()

	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, req)
	}

	defs, rerr := e.resolver.ResolveEffective(ctx, req.Function, req.Platform)
	if rerr != nil {
		if ctx.Err() != nil {
			return nil, e.cancelled(ctx, req)
		}
		out.fail(fmt.Errorf("failed to resolve guardrails: %w", rerr))
		return out, nil
	}
	input, output, unknown := guardrail.Partition(defs)
	// Unknown categories fail validation, so running them on input rejects
	// the request before the model is called.
	input = guardrail.Order(append(input, unknown...))
	output = guardrail.Order(output)

	out.transition(StateInputValidating)
	for _, def := range input {
		if ctx.Err() != nil {
			return nil, e.cancelled(ctx, req)
		}
		res := e.eval(ctx, def, req.UserPrompt, guardrail.DirectionInput)
		if res.Passed {
			continue
		}
		if res.Action == guardrail.ActionFix {
			res.Action = guardrail.ActionReject
		}
		out.Violations = append(out.Violations, res)
		if res.Action.Blocking() {
			out.FinalAction = guardrail.ActionReject
			out.transition(StateInputRejected)
			return out, nil
		}
		out.FinalAction = strongest(out.FinalAction, res.Action)
	}

	out.transition(StateModelInvoking)
	if ctx.Err() != nil {
		return nil, e.cancelled(ctx, req)
	}
	text, model, ierr := invoke(ctx, req.SystemPrompt, req.UserPrompt)
	if ierr != nil {
		if ctx.Err() != nil {
			return nil, e.cancelled(ctx, req)
		}
		out.fail(fmt.Errorf("model invocation failed: %w", ierr))
		return out, nil
	}
	out.ModelUsed = model

	out.transition(StateOutputValidating)
	candidate := text
	pending := output
	ceiling := e.defaultRetries
	for {
		var fixes []guardrail.Definition
		for _, def := range pending {
			if ctx.Err() != nil {
				return nil, e.cancelled(ctx, req)
			}
			res := e.eval(ctx, def, candidate, guardrail.DirectionOutput)
			if res.Passed {
				continue
			}
			out.Violations = append(out.Violations, res)

			switch res.Action {
			case guardrail.ActionReject:
				out.FinalAction = guardrail.ActionReject
				out.transition(StateOutputRejected)
				return out, nil
			case guardrail.ActionFix:
				if res.FixedOutput == nil {
					out.FinalAction = guardrail.ActionReject
					out.transition(StateOutputRejected)
					return out, nil
				}
				candidate = *res.FixedOutput
				fixes = append(fixes, def)
			default:
				out.FinalAction = strongest(out.FinalAction, res.Action)
			}
		}

		if len(fixes) == 0 {
			out.Output = candidate
			out.transition(StateAccepted)
			return out, nil
		}

		for _, def := range fixes {
			if n := def.EffectiveMaxRetries(); n < ceiling {
				ceiling = n
			}
		}
		if out.RetryCount >= ceiling {
			out.FinalAction = guardrail.ActionReject
			out.Err = ErrRetryExhausted
			out.transition(StateOutputRejected)
			return out, nil
		}

		out.RetryCount++
		out.FinalAction = strongest(out.FinalAction, guardrail.ActionFix)
		out.transition(StateOutputFixing)
		out.transition(StateOutputValidating)
		pending = fixes
	}
}

func (e *Engine) cancelled(ctx context.Context, req Request) error {
	e.log.Info("genai request cancelled",
		zap.String("request_id", req.RequestID),
		zap.String("function", req.Function))
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

func (o *Outcome) transition(to State) {
	if !canTransition(o.State, to) {
		panic(invalidTransition{from: o.State, to: to})
	}
	o.State = to
	o.Trail = append(o.Trail, to)
}

func (o *Outcome) fail(err error) {
	o.Output = ""
	o.Err = err
	o.transition(StateFailed)
}

// strongest keeps the most consequential non-blocking action seen so far:
// fix over warn over log.
func strongest(current, next guardrail.Action) guardrail.Action {
	rank := map[guardrail.Action]int{guardrail.ActionLog: 1, guardrail.ActionWarn: 2, guardrail.ActionFix: 3, guardrail.ActionReject: 4}
	if rank[next] > rank[current] {
		return next
	}
	return current
}
