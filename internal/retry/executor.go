package retry

import (
	"context"
	"time"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// Executor runs an operation, retrying it while the classifier reports its
// error as transient and the strategy allows another attempt.
// Safe for concurrent use; WithOnRetry returns a copy.
type Executor struct {
	classifier polingest.ErrorClassifier
	strategy   polingest.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor panics if classifier or strategy is nil.
func NewExecutor(classifier polingest.ErrorClassifier, strategy polingest.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// WithOnRetry returns a copy of e that calls fn before each wait.
func (e *Executor) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = fn
	return &clone
}

// Execute returns nil on the first success, the first fatal error, ctx's error
// if it ends while waiting, or the last transient error once attempts run out.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	max := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err) && (max < 0 || attempt < max); attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = op(ctx)
	}
	return err
}

// Value is Execute for operations that produce a result.
func Value[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
