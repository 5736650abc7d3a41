package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func TestSummary_JSON(t *testing.T) {
	sum := Summary{
		RunID:    "run-1",
		Rows:     2,
		Users:    KindCounts{Existing: 1, Created: 1},
		Policies: PolicyCounts{Staged: 1, Created: 1, SkippedUnresolved: 1},
		Skipped:  []RowSkip{{Row: 2, Line: 3, PolicyNumber: "P2", Reason: SkipUnresolved, Missing: []string{"agent"}}},
		Duration: Duration(1500 * time.Millisecond),
	}

	b, err := json.Marshal(sum)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "1.5s", got["duration"])
	assert.Equal(t, map[string]any{"existing": 1.0, "created": 1.0, "duplicates": 0.0}, got["users"])

	skipped := got["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "unresolved", skipped[0].(map[string]any)["reason"])

	var back Summary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sum.Duration, back.Duration)
}

func TestPolicyCounts_Skipped(t *testing.T) {
	c := PolicyCounts{SkippedExisting: 1, SkippedDuplicate: 2, SkippedUnresolved: 3, SkippedInvalid: 4}
	assert.Equal(t, 10, c.Skipped())
}

func TestStoreError(t *testing.T) {
	inner := errors.New("boom")
	err := storeError("insert agents", inner)

	assert.Equal(t, "insert agents: boom", err.Error())
	assert.ErrorIs(t, err, polingest.ErrStore)
	assert.ErrorIs(t, err, inner)
}

func TestSummary_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, false, logging.FormatText)

	(&Summary{RunID: "r", Rows: 3, Policies: PolicyCounts{Staged: 2, SkippedExisting: 1}}).Log(logger)

	out := buf.String()
	assert.Contains(t, out, "Run r: 3 rows")
	assert.Contains(t, out, "policies")
	assert.Contains(t, out, "skipped=1 (existing=1")
}
