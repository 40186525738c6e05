package schema

import (
	"time"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/jsontree"
)

// LogRecord is one decoded log_line emission. Optional fields of a generation are
// pointers; nil means the key was absent from the line.
type LogRecord struct {
	SchemaVersion int64
	Kind          string
	Code          *string
	Timestamp     time.Time
	ProcessID     int64
	Message       string
	Severity      string
	InvocationID  string
	ThreadName    string
	Data          jsontree.Value
	NodeInfo      *jsontree.Value
}

// CodeOrEmpty returns the record's code, or "" when absent
func (r *LogRecord) CodeOrEmpty() string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}
