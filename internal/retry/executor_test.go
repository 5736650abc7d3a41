package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// flakyOp fails with err until it has been called failures times.
type flakyOp struct {
	calls    int
	failures int
	err      error
}

func (f *flakyOp) run(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func fastBackoff(attempts int) *ExponentialBackoff {
	return NewExponentialBackoff(attempts, WithInitialDelay(time.Millisecond), WithJitter(0))
}

var transientPgErr = &pgconn.PgError{Code: "08006", Message: "connection failure"}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		op        *flakyOp
		wantErr   bool
		wantCalls int
	}{
		{"success first try", 3, &flakyOp{}, false, 1},
		{"success after retries", 5, &flakyOp{failures: 3, err: transientPgErr}, false, 4},
		{"attempts exhausted", 2, &flakyOp{failures: 10, err: transientPgErr}, true, 3},
		{"fatal error not retried", 5, &flakyOp{failures: 10, err: errors.New("syntax error")}, true, 1},
		{"zero attempts", 0, &flakyOp{failures: 10, err: transientPgErr}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(tt.attempts))
			err := e.Execute(context.Background(), tt.op.run)
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.op.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", tt.op.calls, tt.wantCalls)
			}
		})
	}
}

func TestExecutor_OnRetry(t *testing.T) {
	var attempts []int
	base := NewExecutor(NewPostgreSQLErrorClassifier(), fastBackoff(3))
	e := base.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	})

	op := &flakyOp{failures: 2, err: transientPgErr}
	if err := e.Execute(context.Background(), op.run); err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 0 || attempts[1] != 1 {
		t.Errorf("onRetry attempts = %v, want [0 1]", attempts)
	}
	if base.onRetry != nil {
		t.Error("WithOnRetry modified the original executor")
	}
}

func TestExecutor_ContextCancelledDuringWait(t *testing.T) {
	e := NewExecutor(NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(5, WithInitialDelay(time.Hour), WithJitter(0)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	op := &flakyOp{failures: 10, err: transientPgErr}
	err := e.Execute(ctx, op.run)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded", err)
	}
}

func TestValue(t *testing.T) {
	e := NewExecutor(NewSQLiteErrorClassifier(), fastBackoff(3))
	calls := 0
	got, err := Value(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("Value() = %q, %v; want ok, nil", got, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil classifier")
		}
	}()
	NewExecutor(nil, fastBackoff(1))
}
