package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioLine = `{"log_version":1,"type":"log_line","code":"I011","ts":"2021-11-30T12:31:04.312814","pid":59758,"msg":"Parsing tests/generic/builtin.sql","level":"debug","invocation_id":"0c3303e3-2c5c-47f5-bc69-dfaae7843f6f","thread_name":"MainThread","data":{"code":"I011","path":"tests/generic/builtin.sql"},"node_info":{}}`

func newAdapter(t *testing.T, policy Policy) (*Adapter, *metrics.Handler) {
	t.Helper()
	log, _ := logger.New("test", logger.Options{Format: logger.JSONLogFormat})
	metric, err := metrics.New("test")
	require.NoError(t, err)

	a, err := NewAdapter(&Config{Policy: policy, ValidateUTF8: true, MaxLineBytes: 4096}, schema.New(schema.GenerationNaive), log, metric)
	require.NoError(t, err)
	return a, metric
}

func TestIngest_Scenario(t *testing.T) {
	for _, policy := range []Policy{PolicyStrict, PolicyLenient} {
		t.Run(string(policy), func(t *testing.T) {
			a, _ := newAdapter(t, policy)
			second := strings.Replace(scenarioLine, `"pid":59758`, `"pid":1`, 1)

			records, err := a.Ingest(Lines([]string{scenarioLine, second}))
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, int64(59758), records[0].ProcessID)
			assert.Equal(t, int64(1), records[1].ProcessID)
		})
	}
}

func TestIngest_NonJSONLine(t *testing.T) {
	lines := Lines([]string{scenarioLine, "not json at all", scenarioLine})

	t.Run("lenient skips", func(t *testing.T) {
		a, metric := newAdapter(t, PolicyLenient)

		kept, skipped, err := a.Screen(lines)
		require.NoError(t, err)
		require.Len(t, skipped, 1)
		assert.Equal(t, 2, skipped[0].Number)
		assert.Equal(t, []int{1, 3}, numbers(kept))

		records, err := a.Ingest(lines)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 2.0, testutil.ToFloat64(metric.LinesSkipped.WithLabelValues("lenient")))
	})

	t.Run("strict aborts", func(t *testing.T) {
		a, metric := newAdapter(t, PolicyStrict)

		records, err := a.Ingest(lines)
		assert.Nil(t, records)

		var ie *Error
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, 2, ie.Line.Number)
		assert.Equal(t, "not json at all", ie.Line.Text)

		var de *schema.DecodeError
		assert.True(t, errors.As(err, &de))
		assert.Equal(t, 1.0, testutil.ToFloat64(metric.IngestRejectedTotal.WithLabelValues("not_json")))
	})
}

func TestIngest_TypedDecodeFailureAbortsUnderBothPolicies(t *testing.T) {
	missing := strings.Replace(scenarioLine, `"thread_name":"MainThread",`, "", 1)
	lines := Lines([]string{scenarioLine, "[1,2]", missing})

	for _, policy := range []Policy{PolicyStrict, PolicyLenient} {
		t.Run(string(policy), func(t *testing.T) {
			a, _ := newAdapter(t, policy)

			records, err := a.Ingest(lines)
			assert.Nil(t, records)

			var ie *Error
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, 2, ie.Line.Number)

			var de *schema.DecodeError
			assert.True(t, errors.As(err, &de))
		})
	}

	a, metric := newAdapter(t, PolicyLenient)
	_, err := a.Ingest(Lines([]string{scenarioLine, missing}))

	var fte *schema.FieldTypeError
	require.True(t, errors.As(err, &fte))
	assert.Equal(t, schema.FieldThreadName, fte.Field)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1.0, testutil.ToFloat64(metric.IngestRejectedTotal.WithLabelValues("missing_field")))
}

func TestScreen_InvalidUTF8(t *testing.T) {
	bad := `{"msg":"` + string([]byte{0xff, 0xfe}) + `"}`

	a, _ := newAdapter(t, PolicyLenient)
	kept, skipped, err := a.Screen(Lines([]string{bad}))
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Len(t, skipped, 1)

	a, _ = newAdapter(t, PolicyStrict)
	_, _, err = a.Screen(Lines([]string{bad}))
	assert.Contains(t, err.Error(), "invalid UTF-8")
}

func TestScreen_OversizedLineAbortsUnderBothPolicies(t *testing.T) {
	long := `{"msg":"` + strings.Repeat("a", 5000) + `"}`

	for _, policy := range []Policy{PolicyStrict, PolicyLenient} {
		a, _ := newAdapter(t, policy)
		_, _, err := a.Screen(Lines([]string{scenarioLine, long}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLineTooLong))
		assert.Equal(t, "line_too_long", RejectReason(err))
	}
}

func TestNewAdapter_Errors(t *testing.T) {
	s := schema.New(schema.GenerationNaive)

	_, err := NewAdapter(nil, s, nil, nil)
	assert.Error(t, err)

	_, err = NewAdapter(&Config{Policy: PolicyStrict}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewAdapter(&Config{Policy: "sometimes"}, s, nil, nil)
	assert.Error(t, err)

	_, err = NewAdapter(&Config{Policy: PolicyLenient, MaxLineBytes: -1}, s, nil, nil)
	assert.Error(t, err)

	// log and metric are optional
	a, err := NewAdapter(&Config{Policy: PolicyLenient}, s, nil, nil)
	require.NoError(t, err)
	records, err := a.Ingest(Lines([]string{"nope", scenarioLine}))
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, PolicyLenient, a.Policy())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("lenient")
	require.NoError(t, err)
	assert.Equal(t, PolicyLenient, p)

	_, err = ParsePolicy("Strict")
	assert.Error(t, err)
}

func TestRejectReason(t *testing.T) {
	assert.Equal(t, "not_json", RejectReason(&Error{Err: &schema.DecodeError{Reason: "x"}}))
	assert.Equal(t, "field_type", RejectReason(&Error{Err: &schema.FieldTypeError{Field: schema.FieldProcessID}}))
	assert.Equal(t, "missing_field", RejectReason(&schema.FieldTypeError{Missing: true}))
	assert.Equal(t, "other", RejectReason(errors.New("boom")))
}

func numbers(lines []Line) []int {
	out := make([]int, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Number)
	}
	return out
}
