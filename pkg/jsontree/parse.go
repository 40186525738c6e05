package jsontree

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// Parse decodes one complete JSON text into a Value. The text is validated strictly
// first, since the parser alone tolerates some malformed number literals and keeps
// unpaired surrogate escapes as literal text.
func Parse(text string) (Value, error) {
	if err := fastjson.Validate(text); err != nil {
		return Value{}, err
	}
	if err := checkSurrogates(text); err != nil {
		return Value{}, err
	}
	var p fastjson.Parser
	pv, err := p.Parse(text)
	if err != nil {
		return Value{}, err
	}
	return fromFast(pv)
}

// ParseBytes decodes one complete JSON text into a Value
func ParseBytes(data []byte) (Value, error) {
	if err := fastjson.ValidateBytes(data); err != nil {
		return Value{}, err
	}
	if err := checkSurrogates(string(data)); err != nil {
		return Value{}, err
	}
	var p fastjson.Parser
	pv, err := p.ParseBytes(data)
	if err != nil {
		return Value{}, err
	}
	return fromFast(pv)
}

// Valid reports whether text is one well-formed JSON value
func Valid(text string) bool {
	return fastjson.Validate(text) == nil
}

// checkSurrogates rejects \u escapes of UTF-16 surrogates that are not part of a
// high/low pair. text must already be valid JSON.
func checkSurrogates(text string) error {
	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch c {
		case '"':
			inString = false
		case '\\':
			if text[i+1] != 'u' {
				i++
				continue
			}
			r := hexRune(text[i+2 : i+6])
			switch {
			case r >= 0xD800 && r <= 0xDBFF:
				if i+12 > len(text) || text[i+6] != '\\' || text[i+7] != 'u' {
					return fmt.Errorf("unpaired surrogate \\u%s at offset %d", text[i+2:i+6], i)
				}
				low := hexRune(text[i+8 : i+12])
				if low < 0xDC00 || low > 0xDFFF {
					return fmt.Errorf("unpaired surrogate \\u%s at offset %d", text[i+2:i+6], i)
				}
				i += 11
			case r >= 0xDC00 && r <= 0xDFFF:
				return fmt.Errorf("unpaired surrogate \\u%s at offset %d", text[i+2:i+6], i)
			default:
				i += 5
			}
		}
	}
	return nil
}

// hexRune decodes four hex digits already checked by the validator
func hexRune(s string) rune {
	var r rune
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			c -= '0'
		case c >= 'a' && c <= 'f':
			c = c - 'a' + 10
		default:
			c = c - 'A' + 10
		}
		r = r<<4 | rune(c)
	}
	return r
}

// fromFast copies a parser-owned fastjson value into an independent Value.
func fromFast(pv *fastjson.Value) (Value, error) {
	switch pv.Type() {
	case fastjson.TypeNull:
		return Null(), nil
	case fastjson.TypeTrue:
		return Bool(true), nil
	case fastjson.TypeFalse:
		return Bool(false), nil
	case fastjson.TypeNumber:
		return Value{kind: KindNumber, text: string(pv.MarshalTo(nil))}, nil
	case fastjson.TypeString:
		b, err := pv.StringBytes()
		if err != nil {
			return Value{}, err
		}
		return String(string(b)), nil
	case fastjson.TypeArray:
		arr, err := pv.Array()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, len(arr))
		for _, item := range arr {
			v, err := fromFast(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindArray, items: items}, nil
	case fastjson.TypeObject:
		obj, err := pv.Object()
		if err != nil {
			return Value{}, err
		}
		out := Value{kind: KindObject, index: make(map[string]int, obj.Len())}
		var visitErr error
		obj.Visit(func(key []byte, item *fastjson.Value) {
			if visitErr != nil {
				return
			}
			v, err := fromFast(item)
			if err != nil {
				visitErr = err
				return
			}
			if _, seen := out.index[string(key)]; seen {
				out.duplicates = append(out.duplicates, string(key))
			}
			out.set(string(key), v)
		})
		if visitErr != nil {
			return Value{}, visitErr
		}
		return out, nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %s", pv.Type())
	}
}
