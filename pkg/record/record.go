// Package record defines the payload types that flow through the ingestion
// pipeline: raw entities as received from the remote source, resolved entities
// ready for storage, and the sentinel used for indices the source reports as
// missing.
package record

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Placeholder replaces empty or falsy scalar values so that every stored
// column satisfies its NOT NULL constraint.
const Placeholder = "_"

// ErrAbsent is the AbsentRecord sentinel. It is returned by fetchers when the
// remote source reports that no entity exists at an index (for example a
// {"detail": "Not found"} payload). It is an expected outcome, not a failure,
// and an absent record is never persisted.
var ErrAbsent = errors.New("record absent")

// IsAbsent reports whether err signals an absent record.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrAbsent)
}

// Excluded lists the transient metadata fields dropped before resolution.
var Excluded = map[string]struct{}{
	"created": {},
	"edited":  {},
	"url":     {},
}

// IsExcluded reports whether the field is transient metadata.
func IsExcluded(field string) bool {
	_, ok := Excluded[field]
	return ok
}

// Raw is an entity payload as received from the remote source. Values are
// scalars, reference URLs, or lists of reference URLs. A Raw is owned by the
// single task resolving it.
type Raw struct {
	Index  int
	Fields map[string]any
}

// Label returns the identifying field of the payload ("name", falling back to
// "title"), or "n/a" when neither is present.
func (r Raw) Label() string {
	for _, key := range []string{"name", "title"} {
		if s, ok := r.Fields[key].(string); ok && s != "" {
			return s
		}
	}
	return "n/a"
}

// Value is a resolved scalar: either a string or an integer.
type Value struct {
	str   string
	num   int64
	isInt bool
}

// String returns a string Value.
func String(s string) Value {
	return Value{str: s}
}

// Int returns an integer Value.
func Int(n int64) Value {
	return Value{num: n, isInt: true}
}

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool {
	return v.isInt
}

// Int64 returns the integer held by v and whether v is an integer.
func (v Value) Int64() (int64, bool) {
	return v.num, v.isInt
}

// String returns the textual form of v.
func (v Value) String() string {
	if v.isInt {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// Any returns the underlying Go value, suitable as a database/sql argument.
func (v Value) Any() any {
	if v.isInt {
		return v.num
	}
	return v.str
}

// Resolved is an entity whose reference fields have all been replaced by
// human-readable labels. No value starts with a URL scheme.
type Resolved struct {
	Index  int
	Fields map[string]Value
}

// Names returns the field names of r in sorted order.
func (r Resolved) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value stored for field.
func (r Resolved) Get(field string) (Value, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// GoString keeps test failure output readable.
func (v Value) GoString() string {
	if v.isInt {
		return fmt.Sprintf("record.Int(%d)", v.num)
	}
	return fmt.Sprintf("record.String(%q)", v.str)
}

// Equal reports whether v and other hold the same value.
func (v Value) Equal(other Value) bool {
	return v == other
}
