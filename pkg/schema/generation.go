package schema

import (
	"fmt"
	"sort"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/timecodec"
)

// Field names a record field by its wire key
type Field string

const (
	FieldSchemaVersion Field = "log_version"
	FieldKind          Field = "type"
	FieldCode          Field = "code"
	FieldTimestamp     Field = "ts"
	FieldProcessID     Field = "pid"
	FieldMessage       Field = "msg"
	FieldSeverity      Field = "level"
	FieldInvocationID  Field = "invocation_id"
	FieldThreadName    Field = "thread_name"
	FieldData          Field = "data"
	FieldNodeInfo      Field = "node_info"
)

// FieldType is the structural type a field must decode to
type FieldType int

const (
	TypeInteger FieldType = iota
	TypeString
	TypeTimestamp
	TypeAny
)

func (t FieldType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeString:
		return "string"
	case TypeTimestamp:
		return "timestamp string"
	case TypeAny:
		return "any JSON value"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Presence says whether a field must appear in every record of a generation
type Presence int

const (
	Required Presence = iota
	Optional
)

func (p Presence) String() string {
	if p == Optional {
		return "optional"
	}
	return "required"
}

// FieldSpec declares one field of a generation
type FieldSpec struct {
	Field    Field
	Type     FieldType
	Presence Presence
}

// Generation is one versioned shape of the log_line record: which fields exist,
// which of them may be omitted, and how timestamps are written. A generation is
// always chosen by the caller; records are never inspected to guess it.
type Generation struct {
	Name   string
	Zone   timecodec.Zone
	Fields []FieldSpec
}

// Spec returns the declaration of f, if the generation has one
func (g Generation) Spec(f Field) (FieldSpec, bool) {
	for _, fs := range g.Fields {
		if fs.Field == f {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// Declares reports whether the generation declares a field with the given wire key
func (g Generation) Declares(key string) bool {
	_, ok := g.Spec(Field(key))
	return ok
}

func fields(optional ...Field) []FieldSpec {
	specs := []FieldSpec{
		{Field: FieldSchemaVersion, Type: TypeInteger},
		{Field: FieldKind, Type: TypeString},
		{Field: FieldCode, Type: TypeString},
		{Field: FieldTimestamp, Type: TypeTimestamp},
		{Field: FieldProcessID, Type: TypeInteger},
		{Field: FieldMessage, Type: TypeString},
		{Field: FieldSeverity, Type: TypeString},
		{Field: FieldInvocationID, Type: TypeString},
		{Field: FieldThreadName, Type: TypeString},
		{Field: FieldData, Type: TypeAny},
		{Field: FieldNodeInfo, Type: TypeAny},
	}
	for i := range specs {
		for _, f := range optional {
			if specs[i].Field == f {
				specs[i].Presence = Optional
			}
		}
	}
	return specs
}

var (
	// GenerationNaive writes zone-naive timestamps and may omit code and node_info.
	GenerationNaive = Generation{
		Name:   "naive",
		Zone:   timecodec.Naive,
		Fields: fields(FieldCode, FieldNodeInfo),
	}

	// GenerationUTC writes UTC timestamps with a trailing "Z" and requires every field.
	GenerationUTC = Generation{
		Name:   "utc",
		Zone:   timecodec.UTC,
		Fields: fields(),
	}

	generations = map[string]Generation{
		GenerationNaive.Name: GenerationNaive,
		GenerationUTC.Name:   GenerationUTC,
	}
)

// LookupGeneration returns the registered generation with the given name
func LookupGeneration(name string) (Generation, error) {
	g, ok := generations[name]
	if !ok {
		return Generation{}, fmt.Errorf("unknown schema generation %q, must be one of %v", name, GenerationNames())
	}
	return g, nil
}

// GenerationNames lists the registered generation names in sorted order
func GenerationNames() []string {
	names := make([]string, 0, len(generations))
	for name := range generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
