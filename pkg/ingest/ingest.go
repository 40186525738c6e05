package ingest

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kumarabd/gokit/logger"
	"github.com/kumarabd/ingestion-plane/logcontract/internal/metrics"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/jsontree"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
	"github.com/valyala/fastjson"
)

// Policy decides what happens to lines that are not JSON at all
type Policy string

const (
	// PolicyStrict aborts ingestion on the first non-JSON line
	PolicyStrict Policy = "strict"
	// PolicyLenient skips non-JSON lines before typed decode
	PolicyLenient Policy = "lenient"
)

// ParsePolicy validates a policy name
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(name); p {
	case PolicyStrict, PolicyLenient:
		return p, nil
	default:
		return "", fmt.Errorf("unknown ingestion policy %q, must be %q or %q", name, PolicyStrict, PolicyLenient)
	}
}

// Config contains configuration for line ingestion
type Config struct {
	Policy Policy `json:"policy" yaml:"policy" default:"strict"`
	// ValidateUTF8 treats invalid UTF-8 as non-JSON
	ValidateUTF8 bool `json:"validate_utf8" yaml:"validate_utf8" default:"true"`
	// MaxLineBytes bounds a single line, 0 disables the bound
	MaxLineBytes int `json:"max_line_bytes" yaml:"max_line_bytes" default:"1048576"`
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("max_line_bytes must not be negative, got %d", c.MaxLineBytes)
	}
	return nil
}

// ErrLineTooLong reports a line above Config.MaxLineBytes
var ErrLineTooLong = errors.New("line exceeds maximum size")

// Line is one input line with its 1-based position in the corpus. File and
// FileLine locate it inside a multi-file corpus and are empty otherwise.
type Line struct {
	Number   int    `json:"number"`
	Text     string `json:"text"`
	File     string `json:"file,omitempty"`
	FileLine int    `json:"file_line,omitempty"`
}

// Location renders where the line came from
func (l Line) Location() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Number)
	}
	return fmt.Sprintf("line %d (%s:%d)", l.Number, l.File, l.FileLine)
}

// Lines numbers texts from 1 in order
func Lines(texts []string) []Line {
	lines := make([]Line, len(texts))
	for i, text := range texts {
		lines[i] = Line{Number: i + 1, Text: text}
	}
	return lines
}

// Error locates an ingestion failure. Err is the decode-level cause.
type Error struct {
	Line Line
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Line.Location(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Adapter turns raw lines into decoded records under one ingestion policy
type Adapter struct {
	config *Config
	schema *schema.Schema
	log    *logger.Handler
	metric *metrics.Handler
}

// NewAdapter creates an adapter. log and metric may be nil.
func NewAdapter(config *Config, s *schema.Schema, log *logger.Handler, metric *metrics.Handler) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("ingest config cannot be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	return &Adapter{
		config: config,
		schema: s,
		log:    log,
		metric: metric,
	}, nil
}

// Policy returns the adapter's ingestion policy
func (a *Adapter) Policy() Policy {
	return a.config.Policy
}

// Screen applies the generic JSON check to every line. Under the lenient policy
// failing lines are returned as skipped; under the strict policy the first one
// aborts with an *Error wrapping a *schema.DecodeError. Oversized lines abort
// under both policies.
func (a *Adapter) Screen(lines []Line) (kept []Line, skipped []Line, err error) {
	kept = make([]Line, 0, len(lines))
	for _, line := range lines {
		if a.config.MaxLineBytes > 0 && len(line.Text) > a.config.MaxLineBytes {
			a.reject("line_too_long", line, nil)
			return nil, nil, &Error{
				Line: line,
				Err:  fmt.Errorf("%w: %d bytes, limit %d", ErrLineTooLong, len(line.Text), a.config.MaxLineBytes),
			}
		}

		if cause := a.screenLine(line.Text); cause != nil {
			if a.config.Policy == PolicyLenient {
				skipped = append(skipped, line)
				if a.metric != nil {
					a.metric.IncLinesSkipped(string(a.config.Policy))
				}
				if a.log != nil {
					a.log.Debug().Int("line", line.Number).Str("reason", cause.Reason).Msg("skipping non-JSON line")
				}
				continue
			}
			a.reject("not_json", line, cause)
			return nil, nil, &Error{Line: line, Err: cause}
		}
		kept = append(kept, line)
	}
	return kept, skipped, nil
}

func (a *Adapter) screenLine(text string) *schema.DecodeError {
	if a.config.ValidateUTF8 && !utf8.ValidString(text) {
		return &schema.DecodeError{Reason: "invalid UTF-8"}
	}
	if err := fastjson.Validate(text); err != nil {
		return &schema.DecodeError{Reason: "not valid JSON", Err: err}
	}
	return nil
}

// DecodeLine parses and typed-decodes one line. Any failure is an *Error.
func (a *Adapter) DecodeLine(line Line) (jsontree.Value, *schema.LogRecord, error) {
	v, err := jsontree.Parse(line.Text)
	if err != nil {
		return jsontree.Value{}, nil, &Error{Line: line, Err: &schema.DecodeError{Reason: "not valid JSON", Err: err}}
	}
	rec, err := a.schema.DecodeValue(v)
	if err != nil {
		return jsontree.Value{}, nil, &Error{Line: line, Err: err}
	}
	return v, rec, nil
}

// Ingest screens and decodes lines. It returns every record in input order, or
// nothing and the *Error of the first line that aborted ingestion.
func (a *Adapter) Ingest(lines []Line) ([]*schema.LogRecord, error) {
	kept, _, err := a.Screen(lines)
	if err != nil {
		return nil, err
	}

	records := make([]*schema.LogRecord, 0, len(kept))
	for _, line := range kept {
		_, rec, err := a.DecodeLine(line)
		if err != nil {
			a.reject(RejectReason(err), line, err)
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// RejectReason classifies an ingestion failure for metrics
func RejectReason(err error) string {
	var (
		decodeErr *schema.DecodeError
		fieldErr  *schema.FieldTypeError
	)
	switch {
	case errors.Is(err, ErrLineTooLong):
		return "line_too_long"
	case errors.As(err, &fieldErr):
		if fieldErr.Missing {
			return "missing_field"
		}
		return "field_type"
	case errors.As(err, &decodeErr):
		return "not_json"
	default:
		return "other"
	}
}

func (a *Adapter) reject(reason string, line Line, err error) {
	if a.metric != nil {
		a.metric.IncIngestRejectedTotal(reason)
	}
	if a.log != nil {
		a.log.Error().Err(err).Int("line", line.Number).Str("file", line.File).Int("file_line", line.FileLine).Str("policy", string(a.config.Policy)).Msg("ingestion aborted")
	}
}
