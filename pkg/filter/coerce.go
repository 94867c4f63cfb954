package filter

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Undefined marks a field that is absent from a row. It is distinct from a
// present field holding nil (null): the two coerce differently to numbers.
var Undefined = undefinedValue{}

type undefinedValue struct{}

type kind int

const (
	kindUndefined kind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindObject
)

func kindOf(v any) kind {
	switch v.(type) {
	case undefinedValue:
		return kindUndefined
	case nil:
		return kindNull
	case bool:
		return kindBool
	case string:
		return kindString
	case json.Number:
		return kindNumber
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return kindNumber
	}
	return kindObject
}

// Lookup returns row[field], or Undefined when the field is absent.
func Lookup(row Row, field string) any {
	v, ok := row[field]
	if !ok {
		return Undefined
	}
	return v
}

// ToNumber converts v to a float64 with loose numeric semantics:
// null, false and blank strings are 0, true is 1, numeric strings parse after
// trimming, and everything else (including absent fields) is NaN.
func ToNumber(v any) float64 {
	switch t := v.(type) {
	case undefinedValue:
		return math.NaN()
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		return stringToNumber(t)
	case json.Number:
		return stringToNumber(t.String())
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	}
	// Arrays and objects go through their string form first.
	return stringToNumber(ToString(v))
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}

	// strconv accepts forms such as "inf", "nan", hex floats and digit
	// separators; only plain decimal notation is numeric here.
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '+', r == '-', r == 'e', r == 'E':
		default:
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToString renders v the way a row value is displayed and compared by the
// contains operator: "undefined" for absent fields, "null" for nil, integral
// numbers without a fraction, arrays joined by commas.
func ToString(v any) string {
	switch t := v.(type) {
	case undefinedValue:
		return "undefined"
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return NumberToString(stringToNumber(t.String()))
	}

	if kindOf(v) == kindNumber {
		return NumberToString(ToNumber(v))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			elem := rv.Index(i).Interface()
			if k := kindOf(elem); k == kindNull || k == kindUndefined {
				continue
			}
			parts[i] = ToString(elem)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

// NumberToString formats f using the shortest representation that round
// trips, switching to exponent notation outside [1e-6, 1e21).
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// LooseEqual compares a and b with cross-type coercion: null and absent equal
// each other only, booleans compare as 0/1, strings against numbers compare
// numerically, and arrays or objects against primitives compare by their
// string form. Two arrays or objects are equal only when they are the same
// reference.
func LooseEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)

	nullish := func(k kind) bool { return k == kindNull || k == kindUndefined }
	if nullish(ka) || nullish(kb) {
		return nullish(ka) && nullish(kb)
	}

	if ka == kb {
		switch ka {
		case kindNumber:
			return ToNumber(a) == ToNumber(b)
		case kindString:
			return a.(string) == b.(string)
		case kindBool:
			return a.(bool) == b.(bool)
		default:
			return sameReference(a, b)
		}
	}

	switch {
	case ka == kindBool:
		return LooseEqual(ToNumber(a), b)
	case kb == kindBool:
		return LooseEqual(a, ToNumber(b))
	case ka == kindNumber && kb == kindString, ka == kindString && kb == kindNumber:
		return ToNumber(a) == ToNumber(b)
	case ka == kindObject:
		return LooseEqual(ToString(a), b)
	case kb == kindObject:
		return LooseEqual(a, ToString(b))
	}
	return false
}

// StrictEqual compares without coercion: values must share a kind and be
// equal, NaN never equals itself, and arrays or objects compare by reference.
func StrictEqual(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindUndefined, kindNull:
		return true
	case kindNumber:
		return ToNumber(a) == ToNumber(b)
	case kindString:
		return a.(string) == b.(string)
	case kindBool:
		return a.(bool) == b.(bool)
	}
	return sameReference(a, b)
}

func sameReference(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() != rb.Kind() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Func, reflect.Chan:
		if ra.Kind() == reflect.Slice && ra.Len() != rb.Len() {
			return false
		}
		return ra.Pointer() == rb.Pointer()
	}
	return false
}
