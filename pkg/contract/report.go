package contract

import (
	"time"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/conformance"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/ingest"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/roundtrip"
)

// ConformanceFinding lists the failed checks of one line
type ConformanceFinding struct {
	Line     int                   `json:"line"`
	Failures []conformance.Failure `json:"failures"`
}

// RoundTripFinding lists the mismatches of one line
type RoundTripFinding struct {
	Line       int                  `json:"line"`
	Mismatches []roundtrip.Mismatch `json:"mismatches"`
}

// Report is the outcome of one run over a corpus. Findings are ordered by line.
type Report struct {
	RunID      string        `json:"run_id"`
	Generation string        `json:"generation"`
	Policy     ingest.Policy `json:"policy"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`

	TotalLines int   `json:"total_lines"`
	Skipped    []int `json:"skipped,omitempty"`
	Records    int   `json:"records"`

	Conformance []ConformanceFinding `json:"conformance,omitempty"`
	RoundTrip   []RoundTripFinding   `json:"roundtrip,omitempty"`
}

// ConformancePassed reports whether every record satisfied the content invariants
func (r *Report) ConformancePassed() bool {
	return len(r.Conformance) == 0
}

// RoundTripPassed reports whether every record re-encoded without mismatches
func (r *Report) RoundTripPassed() bool {
	return len(r.RoundTrip) == 0
}

// Passed reports whether both checks passed
func (r *Report) Passed() bool {
	return r.ConformancePassed() && r.RoundTripPassed()
}

// FailureCount returns the number of conformance failures and mismatches
func (r *Report) FailureCount() int {
	n := 0
	for _, f := range r.Conformance {
		n += len(f.Failures)
	}
	for _, f := range r.RoundTrip {
		n += len(f.Mismatches)
	}
	return n
}
