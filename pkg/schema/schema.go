// Package schema defines the log_line record contract: its fields, the schema
// generations that shape them, and the typed decode / re-encode of one line.
package schema

import (
	"errors"
	"fmt"

	"github.com/kumarabd/ingestion-plane/logcontract/pkg/jsontree"
	"github.com/kumarabd/ingestion-plane/logcontract/pkg/timecodec"
)

// Option configures a Schema
type Option func(*Schema)

// DisallowUnknownFields makes decode reject keys the generation does not declare.
// By default they are ignored, and therefore lost on re-encode.
func DisallowUnknownFields() Option {
	return func(s *Schema) {
		s.disallowUnknown = true
	}
}

// Schema decodes and encodes records of one pinned generation
type Schema struct {
	gen             Generation
	codec           timecodec.Codec
	disallowUnknown bool
}

// New creates a schema pinned to gen
func New(gen Generation, opts ...Option) *Schema {
	s := &Schema{
		gen:   gen,
		codec: timecodec.New(gen.Zone),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generation returns the pinned generation
func (s *Schema) Generation() Generation {
	return s.gen
}

// Codec returns the timestamp codec of the pinned generation
func (s *Schema) Codec() timecodec.Codec {
	return s.codec
}

// Decode parses one line of text into a record
func (s *Schema) Decode(text string) (*LogRecord, error) {
	v, err := jsontree.Parse(text)
	if err != nil {
		return nil, &DecodeError{Reason: "not valid JSON", Err: err}
	}
	return s.DecodeValue(v)
}

// DecodeValue decodes an already parsed value into a record. Either every declared
// field decodes or no record is returned.
func (s *Schema) DecodeValue(v jsontree.Value) (*LogRecord, error) {
	if v.Kind() != jsontree.KindObject {
		return nil, &DecodeError{Reason: fmt.Sprintf("top-level value is %s, not object", v.Kind())}
	}

	for _, key := range v.Duplicates() {
		if s.gen.Declares(key) {
			return nil, &DecodeError{Reason: fmt.Sprintf("duplicate field %q", key)}
		}
	}

	if s.disallowUnknown {
		for _, m := range v.Members() {
			if !s.gen.Declares(m.Key) {
				return nil, &DecodeError{Reason: fmt.Sprintf("unknown field %q in generation %q", m.Key, s.gen.Name)}
			}
		}
	}

	rec := &LogRecord{}
	for _, fs := range s.gen.Fields {
		fv, ok := v.Get(string(fs.Field))
		if !ok {
			if fs.Presence == Required {
				return nil, &FieldTypeError{Field: fs.Field, Expected: fs.Type.String(), Missing: true}
			}
			continue
		}
		if err := s.assign(rec, fs, fv); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Schema) assign(rec *LogRecord, fs FieldSpec, v jsontree.Value) error {
	switch fs.Type {
	case TypeInteger:
		n, err := v.Int64()
		if err != nil {
			return typeError(fs, v, nil)
		}
		switch fs.Field {
		case FieldSchemaVersion:
			rec.SchemaVersion = n
		case FieldProcessID:
			rec.ProcessID = n
		}
	case TypeString:
		str, ok := v.StringValue()
		if !ok {
			return typeError(fs, v, nil)
		}
		switch fs.Field {
		case FieldKind:
			rec.Kind = str
		case FieldCode:
			rec.Code = &str
		case FieldMessage:
			rec.Message = str
		case FieldSeverity:
			rec.Severity = str
		case FieldInvocationID:
			rec.InvocationID = str
		case FieldThreadName:
			rec.ThreadName = str
		}
	case TypeTimestamp:
		str, ok := v.StringValue()
		if !ok {
			return typeError(fs, v, nil)
		}
		ts, err := s.codec.Decode(str)
		if err != nil {
			return typeError(fs, v, err)
		}
		rec.Timestamp = ts
	case TypeAny:
		switch fs.Field {
		case FieldData:
			rec.Data = v
		case FieldNodeInfo:
			rec.NodeInfo = &v
		}
	}
	return nil
}

func typeError(fs FieldSpec, v jsontree.Value, err error) *FieldTypeError {
	return &FieldTypeError{
		Field:    fs.Field,
		Expected: fs.Type.String(),
		Actual:   fmt.Sprintf("%s %s", v.Kind(), v.Describe()),
		Err:      err,
	}
}

// Encode writes rec as one compact JSON object with keys in declared order.
// Absent optional fields are omitted.
func (s *Schema) Encode(rec *LogRecord) ([]byte, error) {
	v, err := s.EncodeValue(rec)
	if err != nil {
		return nil, err
	}
	return v.MarshalTo(nil), nil
}

// EncodeValue builds the object tree Encode writes
func (s *Schema) EncodeValue(rec *LogRecord) (jsontree.Value, error) {
	if rec == nil {
		return jsontree.Value{}, errors.New("encode record: nil record")
	}

	members := make([]jsontree.Member, 0, len(s.gen.Fields))
	for _, fs := range s.gen.Fields {
		v := s.fieldValue(rec, fs.Field)
		if !v.IsValid() {
			if fs.Presence == Required {
				return jsontree.Value{}, &FieldTypeError{Field: fs.Field, Expected: fs.Type.String(), Missing: true}
			}
			continue
		}
		members = append(members, jsontree.Member{Key: string(fs.Field), Value: v})
	}
	return jsontree.Object(members...), nil
}

// fieldValue returns the wire value of f, or an invalid Value when the record has none.
func (s *Schema) fieldValue(rec *LogRecord, f Field) jsontree.Value {
	switch f {
	case FieldSchemaVersion:
		return jsontree.Int(rec.SchemaVersion)
	case FieldKind:
		return jsontree.String(rec.Kind)
	case FieldCode:
		if rec.Code == nil {
			return jsontree.Value{}
		}
		return jsontree.String(*rec.Code)
	case FieldTimestamp:
		return jsontree.String(s.codec.Encode(rec.Timestamp))
	case FieldProcessID:
		return jsontree.Int(rec.ProcessID)
	case FieldMessage:
		return jsontree.String(rec.Message)
	case FieldSeverity:
		return jsontree.String(rec.Severity)
	case FieldInvocationID:
		return jsontree.String(rec.InvocationID)
	case FieldThreadName:
		return jsontree.String(rec.ThreadName)
	case FieldData:
		return rec.Data
	case FieldNodeInfo:
		if rec.NodeInfo == nil {
			return jsontree.Value{}
		}
		return *rec.NodeInfo
	}
	return jsontree.Value{}
}
