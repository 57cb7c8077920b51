package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/metrics"
)

// EvalFunc evaluates one guardrail against one payload.
type EvalFunc func(ctx context.Context, def guardrail.Definition, payload string, dir guardrail.Direction) guardrail.Result

// Interceptor wraps an EvalFunc.
type Interceptor func(next EvalFunc) EvalFunc

// Chain applies interceptors so the first one listed is the outermost.
func Chain(base EvalFunc, interceptors ...Interceptor) EvalFunc {
	fn := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		fn = interceptors[i](fn)
	}
	return fn
}

const msgEvaluatorError = "evaluator error"

// Recover turns a panicking evaluation into a failing reject.
func Recover(log *zap.Logger) Interceptor {
	return func(next EvalFunc) EvalFunc {
		return func(ctx context.Context, def guardrail.Definition, payload string, dir guardrail.Direction) (res guardrail.Result) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("guardrail evaluation panicked",
						zap.String("guardrail", def.ID),
						zap.Any("panic", r))
					res = guardrail.Result{
						Passed:      false,
						GuardrailID: def.ID,
						Category:    def.Category,
						Severity:    def.Severity,
						Direction:   dir,
						Action:      guardrail.ActionReject,
						Message:     msgEvaluatorError,
						Evidence:    fmt.Sprintf("panic: %v", r),
					}
				}
			}()
			return next(ctx, def, payload, dir)
		}
	}
}

// Metrics records each evaluation.
func Metrics() Interceptor {
	return func(next EvalFunc) EvalFunc {
		return func(ctx context.Context, def guardrail.Definition, payload string, dir guardrail.Direction) guardrail.Result {
			start := time.Now()
			res := next(ctx, def, payload, dir)
			metrics.RecordEvaluation(string(def.Category), string(dir), res.Passed, time.Since(start))
			return res
		}
	}
}

// Logging logs failed evaluations at debug level. Evidence is never logged.
func Logging(log *zap.Logger) Interceptor {
	return func(next EvalFunc) EvalFunc {
		return func(ctx context.Context, def guardrail.Definition, payload string, dir guardrail.Direction) guardrail.Result {
			res := next(ctx, def, payload, dir)
			if !res.Passed {
				log.Debug("guardrail violation",
					zap.String("guardrail", res.GuardrailID),
					zap.String("category", string(res.Category)),
					zap.String("direction", string(dir)),
					zap.String("action", string(res.Action)),
					zap.String("message", res.Message))
			}
			return res
		}
	}
}
