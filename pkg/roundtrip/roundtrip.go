// Package roundtrip checks that decoding a log line and encoding it again neither
// loses nor invents information.
package roundtrip

import (
	"encoding/json"
	"fmt"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/jsontree"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/schema"
	"golang.org/x/text/unicode/norm"
)

// Direction names the sweep that found a mismatch
type Direction int

const (
	// Dropped: a key of the original is absent or different after re-encoding
	Dropped Direction = iota
	// Invented: a key of the re-encoded object is absent or different in the original
	Invented
)

func (d Direction) String() string {
	switch d {
	case Dropped:
		return "dropped"
	case Invented:
		return "invented"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Mismatch is one offending top-level key. Value is the key's value on the swept
// side; Counterpart is its value on the other side, invalid when absent there.
type Mismatch struct {
	Key         string
	Value       jsontree.Value
	Counterpart jsontree.Value
	Direction   Direction
}

func (m Mismatch) Error() string {
	var msg string
	if m.Direction == Invented {
		msg = fmt.Sprintf("looped key value (%q, %s) not found in original result", m.Key, m.Value.Describe())
	} else {
		msg = fmt.Sprintf("original key value (%q, %s) expected in re-serialized result", m.Key, m.Value.Describe())
	}
	if m.Counterpart.IsValid() {
		msg += fmt.Sprintf(", other side has %s", m.Counterpart.Describe())
	}
	return msg
}

func (m Mismatch) MarshalJSON() ([]byte, error) {
	out := struct {
		Key         string          `json:"key"`
		Direction   Direction       `json:"direction"`
		Value       jsontree.Value  `json:"value"`
		Counterpart *jsontree.Value `json:"counterpart,omitempty"`
	}{
		Key:       m.Key,
		Direction: m.Direction,
		Value:     m.Value,
	}
	if m.Counterpart.IsValid() {
		out.Counterpart = &m.Counterpart
	}
	return json.Marshal(out)
}

// NotComparableError reports a side of the comparison that is not a JSON object
type NotComparableError struct {
	Side string
	Kind jsontree.Kind
}

func (e *NotComparableError) Error() string {
	return fmt.Sprintf("not comparing json objects: %s value is %s", e.Side, e.Kind)
}

const (
	SideOriginal  = "original"
	SideReencoded = "re-encoded"
)

// Config holds comparator settings
type Config struct {
	// UnicodeNormalization compares string values after NFC normalization
	UnicodeNormalization bool `json:"unicode_normalization" yaml:"unicode_normalization" default:"false"`
}

// Result is the outcome of comparing one line
type Result struct {
	// Record is the typed decode, nil when DecodeErr is set
	Record *schema.LogRecord
	// Reencoded is the text produced by encoding Record
	Reencoded []byte
	// DecodeErr is the typed-decode failure of a structurally valid line; no sweep ran
	DecodeErr  error
	Mismatches []Mismatch
}

// Passed reports whether the line decoded and re-encoded without mismatches
func (r Result) Passed() bool {
	return r.DecodeErr == nil && len(r.Mismatches) == 0
}

// Comparator runs decode, re-encode and the two-way structural diff for one schema
type Comparator struct {
	schema *schema.Schema
	opts   []jsontree.EqualOption
}

// New creates a comparator for s; a nil config selects the defaults
func New(s *schema.Schema, cfg *Config) *Comparator {
	c := &Comparator{schema: s}
	if cfg != nil && cfg.UnicodeNormalization {
		c.opts = append(c.opts, jsontree.WithStringNormalizer(norm.NFC.String))
	}
	return c
}

// Compare checks raw. Text that is not JSON yields a *schema.DecodeError and a
// non-object yields a *NotComparableError. A typed-decode failure is reported in
// Result.DecodeErr rather than as an error.
func (c *Comparator) Compare(raw string) (Result, error) {
	original, err := jsontree.Parse(raw)
	if err != nil {
		return Result{}, &schema.DecodeError{Reason: "not valid JSON", Err: err}
	}
	if original.Kind() != jsontree.KindObject {
		return Result{}, &NotComparableError{Side: SideOriginal, Kind: original.Kind()}
	}

	rec, err := c.schema.DecodeValue(original)
	if err != nil {
		return Result{DecodeErr: err}, nil
	}
	return c.CompareDecoded(original, rec)
}

// CompareDecoded re-encodes rec and diffs it against original, the parsed line rec
// was decoded from.
func (c *Comparator) CompareDecoded(original jsontree.Value, rec *schema.LogRecord) (Result, error) {
	if original.Kind() != jsontree.KindObject {
		return Result{}, &NotComparableError{Side: SideOriginal, Kind: original.Kind()}
	}

	out, err := c.schema.Encode(rec)
	if err != nil {
		return Result{}, fmt.Errorf("re-encode record: %w", err)
	}
	looped, err := jsontree.ParseBytes(out)
	if err != nil {
		return Result{}, fmt.Errorf("parse re-encoded record: %w", err)
	}

	mismatches, err := Diff(original, looped, c.opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec, Reencoded: out, Mismatches: mismatches}, nil
}

// Diff sweeps the keys of original against looped and then the keys of looped
// against original. A key that differs on both sides is reported by both sweeps.
func Diff(original, looped jsontree.Value, opts ...jsontree.EqualOption) ([]Mismatch, error) {
	if original.Kind() != jsontree.KindObject {
		return nil, &NotComparableError{Side: SideOriginal, Kind: original.Kind()}
	}
	if looped.Kind() != jsontree.KindObject {
		return nil, &NotComparableError{Side: SideReencoded, Kind: looped.Kind()}
	}

	var mismatches []Mismatch
	mismatches = sweep(mismatches, original, looped, Dropped, opts)
	mismatches = sweep(mismatches, looped, original, Invented, opts)
	return mismatches, nil
}

func sweep(dst []Mismatch, from, to jsontree.Value, dir Direction, opts []jsontree.EqualOption) []Mismatch {
	for _, m := range from.Members() {
		other, ok := to.Get(m.Key)
		if ok && jsontree.Equal(m.Value, other, opts...) {
			continue
		}
		dst = append(dst, Mismatch{Key: m.Key, Value: m.Value, Counterpart: other, Direction: dir})
	}
	return dst
}
