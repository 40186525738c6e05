package jsontree

import (
	"math/big"
	"strconv"
	"strings"
)

// EqualOption adjusts structural equality
type EqualOption func(*equalConfig)

type equalConfig struct {
	normalize func(string) string
}

// WithStringNormalizer compares string values (not object keys) after applying fn to both sides.
func WithStringNormalizer(fn func(string) string) EqualOption {
	return func(c *equalConfig) {
		c.normalize = fn
	}
}

// Equal reports whether a and b are structurally equal: same kind, equal scalars,
// element-wise equal arrays, and objects with the same key set and equal values
// regardless of key order. Numbers are compared by value, not by literal.
func Equal(a, b Value, opts ...EqualOption) bool {
	cfg := equalConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return equal(a, b, &cfg)
}

func equal(a, b Value, cfg *equalConfig) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid, KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return numbersEqual(a.text, b.text)
	case KindString:
		if cfg.normalize != nil {
			return cfg.normalize(a.text) == cfg.normalize(b.text)
		}
		return a.text == b.text
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !equal(a.items[i], b.items[i], cfg) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Key)
			if !ok || !equal(m.Value, other, cfg) {
				return false
			}
		}
		return true
	}
	return false
}

// numbersEqual compares two number literals by exact decimal value, so 100, 1e2 and
// 100.0 are equal while distinct large integers never round together and tiny
// values never collapse to zero.
func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai == bi
	}
	ad, ok := parseDecimal(a)
	if !ok {
		return false
	}
	bd, ok := parseDecimal(b)
	if !ok {
		return false
	}
	return ad.neg == bd.neg && ad.digits == bd.digits && ad.exp.Cmp(bd.exp) == 0
}

// decimal is a number literal in canonical form: ±digits × 10^exp with no leading
// or trailing zero digits. Zero has empty digits.
type decimal struct {
	neg    bool
	digits string
	exp    *big.Int
}

func parseDecimal(literal string) (decimal, bool) {
	d := decimal{exp: new(big.Int)}
	s := literal
	if strings.HasPrefix(s, "-") {
		d.neg = true
		s = s[1:]
	}
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		if _, ok := d.exp.SetString(s[i+1:], 10); !ok {
			return decimal{}, false
		}
		s = s[:i]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	digits := intPart + frac
	for _, c := range digits {
		if c < '0' || c > '9' {
			return decimal{}, false
		}
	}
	d.exp.Sub(d.exp, big.NewInt(int64(len(frac))))

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return decimal{exp: new(big.Int)}, true
	}
	trimmed := strings.TrimRight(digits, "0")
	d.exp.Add(d.exp, big.NewInt(int64(len(digits)-len(trimmed))))
	d.digits = trimmed
	return d, true
}
