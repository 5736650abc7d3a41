package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{fmt.Errorf("line 3: %w", polingest.ErrParse), OutcomeParseError},
		{fmt.Errorf(".txt: %w", polingest.ErrUnsupportedFormat), OutcomeUnsupportedFormat},
		{fmt.Errorf("insert agents: %w", polingest.ErrStore), OutcomeStoreError},
		{errors.New("ingestion panicked"), OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}

func TestCollector_ObserveRun(t *testing.T) {
	c := New()

	c.ObserveRun(&ingest.Summary{
		Users:    ingest.KindCounts{Existing: 1, Created: 2, Duplicates: 1},
		Policies: ingest.PolicyCounts{Created: 3, SkippedUnresolved: 2},
	}, time.Second, nil)
	c.ObserveRun(nil, time.Millisecond, fmt.Errorf("x: %w", polingest.ErrStore))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues(OutcomeStoreError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.entities.WithLabelValues("users", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.entities.WithLabelValues("users", "duplicate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.entities.WithLabelValues("policies", "created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.skipped.WithLabelValues("unresolved")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveRun(&ingest.Summary{}, time.Second, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `polingest_ingest_runs_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
