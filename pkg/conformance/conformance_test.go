package conformance

import (
	"strings"
	"testing"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioLine = `{"log_version":1,"type":"log_line","code":"I011","ts":"2021-11-30T12:31:04.312814","pid":59758,"msg":"Parsing tests/generic/builtin.sql","level":"debug","invocation_id":"0c3303e3-2c5c-47f5-bc69-dfaae7843f6f","thread_name":"MainThread","data":{"code":"I011","path":"tests/generic/builtin.sql"},"node_info":{}}`

func decode(t *testing.T, line string) *schema.LogRecord {
	t.Helper()
	rec, err := schema.New(schema.GenerationNaive).Decode(line)
	require.NoError(t, err)
	return rec
}

func TestValidate_Conforming(t *testing.T) {
	v := New(nil)
	for _, level := range Severities {
		line := strings.Replace(scenarioLine, `"level":"debug"`, `"level":"`+level+`"`, 1)
		assert.Nil(t, v.Validate(decode(t, line)), level)
	}
}

func TestValidate_SchemaVersionDrift(t *testing.T) {
	rec := decode(t, strings.Replace(scenarioLine, `"log_version":1`, `"log_version":2`, 1))

	failures := New(nil).Validate(rec)
	require.Len(t, failures, 1)
	assert.Equal(t, schema.FieldSchemaVersion, failures[0].Field)
	assert.Equal(t, int64(1), failures[0].Expected)
	assert.Equal(t, int64(2), failures[0].Actual)
	assert.Contains(t, failures[0].Error(), "log_version")
}

func TestValidate_Severity(t *testing.T) {
	for _, level := range []string{"fatal", "DEBUG", "", "warning"} {
		t.Run(level, func(t *testing.T) {
			rec := decode(t, strings.Replace(scenarioLine, `"level":"debug"`, `"level":"`+level+`"`, 1))

			failures := New(nil).Validate(rec)
			require.Len(t, failures, 1)
			assert.Equal(t, schema.FieldSeverity, failures[0].Field)
			assert.Equal(t, Severities, failures[0].Expected)
			assert.Equal(t, level, failures[0].Actual)
		})
	}
}

func TestValidate_AllChecksReported(t *testing.T) {
	line := strings.Replace(scenarioLine, `"log_version":1`, `"log_version":3`, 1)
	line = strings.Replace(line, `"type":"log_line"`, `"type":"node_status"`, 1)
	line = strings.Replace(line, `"level":"debug"`, `"level":"trace"`, 1)
	rec := decode(t, line)

	failures := New(&Config{}).Validate(rec)
	require.Len(t, failures, 3)
	assert.Equal(t, schema.FieldSchemaVersion, failures[0].Field)
	assert.Equal(t, schema.FieldKind, failures[1].Field)
	assert.Equal(t, "node_status", failures[1].Actual)
	assert.Equal(t, schema.FieldSeverity, failures[2].Field)

	failures = New(&Config{FailFast: true}).Validate(rec)
	require.Len(t, failures, 1)
	assert.Equal(t, schema.FieldSchemaVersion, failures[0].Field)
}

func TestFailure_Error(t *testing.T) {
	f := Failure{Field: schema.FieldSeverity, Expected: Severities, Actual: "fatal"}
	assert.Equal(t, `field "level": expected one of ["debug" "info" "warn" "error"], got "fatal"`, f.Error())

	f = Failure{Field: schema.FieldKind, Expected: Kind, Actual: "x"}
	assert.Equal(t, `field "type": expected "log_line", got "x"`, f.Error())
}
