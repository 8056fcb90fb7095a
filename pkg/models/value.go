package models

import (
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// Kind identifies the type carried by a Value.
type Kind int

const (
	// KindNull marks an absent or explicit null cell
	KindNull Kind = iota
	// KindString marks a text cell
	KindString
	// KindNumber marks a numeric cell
	KindNumber
	// KindBool marks a boolean cell
	KindBool
	// KindTime marks a date/datetime cell
	KindTime
)

// Value is a tagged cell value. Records carry Values rather than raw
// interface{} payloads so downstream writers never have to re-inspect
// dynamic types.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// String returns a text value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Time returns a date/datetime value.
func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t}
}

// Salesforce emits dates and datetimes as ISO 8601 strings.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02",
}

// FromRaw classifies a raw value from the Salesforce REST response into a
// tagged Value. Strings that parse as ISO 8601 become time values; nested
// objects and arrays are preserved as their JSON encoding.
func FromRaw(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case string:
		if v == "" {
			return String(v)
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return Time(t)
			}
		}
		return String(v)
	case float64:
		return Number(v)
	case int:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case bool:
		return Bool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return Null()
		}
		return String(string(encoded))
	}
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Raw returns the untagged Go value, suitable for writers that accept
// interface{} cells.
func (v Value) Raw() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// String renders the value for flat-text output. Null renders as the
// empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}
