// Package conformance asserts the content invariants of decoded log_line records.
package conformance

import (
	"fmt"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
)

const (
	// SchemaVersion is the only log_version the contract accepts
	SchemaVersion int64 = 1
	// Kind is the only record type the contract models
	Kind = "log_line"
)

// Severities is the closed set of accepted levels, in increasing order
var Severities = []string{"debug", "info", "warn", "error"}

// Config holds validator settings
type Config struct {
	// FailFast stops at the first failing check instead of reporting all of them
	FailFast bool `json:"fail_fast" yaml:"fail_fast" default:"false"`
}

// Failure is one violated invariant of a well-typed record
type Failure struct {
	Field    schema.Field `json:"field"`
	Expected any          `json:"expected"`
	Actual   any          `json:"actual"`
}

func (f Failure) Error() string {
	if allowed, ok := f.Expected.([]string); ok {
		return fmt.Sprintf("field %q: expected one of %q, got %#v", f.Field, allowed, f.Actual)
	}
	return fmt.Sprintf("field %q: expected %#v, got %#v", f.Field, f.Expected, f.Actual)
}

// Validator checks decoded records against the contract
type Validator struct {
	failFast bool
}

// New creates a validator; a nil config selects the defaults
func New(cfg *Config) *Validator {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Validator{failFast: cfg.FailFast}
}

// Validate returns every failed check of rec, or nil when rec conforms
func (v *Validator) Validate(rec *schema.LogRecord) []Failure {
	checks := []func(*schema.LogRecord) *Failure{
		checkSchemaVersion,
		checkKind,
		checkSeverity,
	}

	var failures []Failure
	for _, check := range checks {
		if f := check(rec); f != nil {
			failures = append(failures, *f)
			if v.failFast {
				break
			}
		}
	}
	return failures
}

func checkSchemaVersion(rec *schema.LogRecord) *Failure {
	if rec.SchemaVersion == SchemaVersion {
		return nil
	}
	return &Failure{Field: schema.FieldSchemaVersion, Expected: SchemaVersion, Actual: rec.SchemaVersion}
}

func checkKind(rec *schema.LogRecord) *Failure {
	if rec.Kind == Kind {
		return nil
	}
	return &Failure{Field: schema.FieldKind, Expected: Kind, Actual: rec.Kind}
}

func checkSeverity(rec *schema.LogRecord) *Failure {
	for _, s := range Severities {
		if rec.Severity == s {
			return nil
		}
	}
	allowed := make([]string, len(Severities))
	copy(allowed, Severities)
	return &Failure{Field: schema.FieldSeverity, Expected: allowed, Actual: rec.Severity}
}
