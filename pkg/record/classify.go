package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags how a raw field value has to be resolved.
type Kind int

const (
	// KindScalar values are passed through unchanged (falsy ones become Placeholder).
	KindScalar Kind = iota

	// KindReference values are a single URL whose label must be fetched.
	KindReference

	// KindReferenceList values are an ordered list of URLs whose labels are
	// fetched and joined with ListSeparator.
	KindReferenceList
)

// ListSeparator joins the labels of a reference list.
const ListSeparator = ", "

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	case KindReferenceList:
		return "reference_list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a classified raw value.
type Field struct {
	Kind Kind

	// URLs holds the reference targets in source order. It has exactly one
	// element for KindReference and is empty for KindScalar.
	URLs []string

	// Scalar holds the pass-through value for KindScalar.
	Scalar Value
}

// IsURL reports whether s is treated as a reference. Any string starting with
// "http" qualifies; there is no host allow-list.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http")
}

// Classify inspects a decoded JSON value once and decides its resolution
// strategy.
func Classify(v any) Field {
	switch t := v.(type) {
	case string:
		if IsURL(t) {
			return Field{Kind: KindReference, URLs: []string{t}}
		}
	case []any:
		if urls, ok := urlList(t); ok {
			return Field{Kind: KindReferenceList, URLs: urls}
		}
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return Classify(items)
	}
	return Field{Kind: KindScalar, Scalar: ToScalar(v)}
}

// urlList returns the elements of items when every one of them is a URL.
func urlList(items []any) ([]string, bool) {
	if len(items) == 0 {
		return nil, false
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || !IsURL(s) {
			return nil, false
		}
		urls = append(urls, s)
	}
	return urls, true
}

// IsFalsy reports whether v is an empty or zero value: nil, "", false, 0, or an
// empty list or object.
func IsFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// ToScalar converts a non-reference value to a Value, substituting
// Placeholder for falsy input.
func ToScalar(v any) Value {
	if IsFalsy(v) {
		return String(Placeholder)
	}

	switch t := v.(type) {
	case string:
		return String(t)
	case bool:
		return String(strconv.FormatBool(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Int(n)
		}
		return String(t.String())
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < math.MaxInt64 {
			return Int(int64(t))
		}
		return String(strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, ToScalar(item).String())
		}
		return String(strings.Join(parts, ListSeparator))
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return String(fmt.Sprint(t))
		}
		return String(string(data))
	}
}
