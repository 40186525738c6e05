// Package timecodec encodes and decodes the fixed-width timestamp text used by the
// log_line record format, e.g. "2021-11-30T12:31:04.312814" or "2021-12-01T21:33:53.239614Z".
package timecodec

import (
	"fmt"
	"regexp"
	"time"
)

// Zone selects how the codec treats zone information.
type Zone int

const (
	// Naive timestamps carry no zone marker; the decoded value has no offset semantics.
	Naive Zone = iota
	// UTC timestamps must end with a literal "Z" and are emitted with one.
	UTC
)

// String returns the zone policy name
func (z Zone) String() string {
	switch z {
	case Naive:
		return "naive"
	case UTC:
		return "utc"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

const (
	// FractionDigits is the width of the fractional-second component emitted by Encode.
	FractionDigits = 6

	parseLayout  = "2006-01-02T15:04:05.999999"
	encodeLayout = "2006-01-02T15:04:05.000000"
	utcMarker    = "Z"
)

var pattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})\.(\d+)(.*)$`)

// FormatError reports timestamp text that does not match the codec's pattern.
type FormatError struct {
	Text   string
	Zone   Zone
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s timestamp %q: %s", e.Zone, e.Text, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Codec converts between time.Time and timestamp text for one zone policy.
type Codec struct {
	zone Zone
}

// New creates a codec for the given zone policy
func New(zone Zone) Codec {
	return Codec{zone: zone}
}

// Zone returns the codec's zone policy
func (c Codec) Zone() Zone {
	return c.zone
}

// Decode parses timestamp text. Naive values are returned in time.UTC without implying
// that the producer meant UTC.
func (c Codec) Decode(text string) (time.Time, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, c.formatError(text, "expected YYYY-MM-DDTHH:MM:SS.ffffff", nil)
	}

	if n := len(m[7]); n > FractionDigits {
		return time.Time{}, c.formatError(text, fmt.Sprintf("fractional seconds have %d digits, at most %d allowed", n, FractionDigits), nil)
	}

	suffix := m[8]
	switch c.zone {
	case UTC:
		if suffix != utcMarker {
			return time.Time{}, c.formatError(text, "missing trailing UTC marker \"Z\"", nil)
		}
	default:
		if suffix != "" {
			return time.Time{}, c.formatError(text, fmt.Sprintf("unexpected zone suffix %q", suffix), nil)
		}
	}

	t, err := time.Parse(parseLayout, text[:len(text)-len(suffix)])
	if err != nil {
		return time.Time{}, c.formatError(text, "calendar field out of range", err)
	}
	return t, nil
}

// Encode renders t with six fractional digits, followed by "Z" for the UTC policy.
func (c Codec) Encode(t time.Time) string {
	if c.zone == UTC {
		return t.UTC().Format(encodeLayout) + utcMarker
	}
	return t.Format(encodeLayout)
}

func (c Codec) formatError(text, reason string, err error) *FormatError {
	return &FormatError{Text: text, Zone: c.zone, Reason: reason, Err: err}
}
