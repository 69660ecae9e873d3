// Package tagvalue defines the typed value carried by a single tag entry
// for a single read within a combined block.
package tagvalue

import "fmt"

// Type identifies which variant a Value holds, independent of any
// particular read. The planner tracks Type per tag name at plan time
// (spec.md §3, "Tag metadata (compile-time view)").
type Type int

const (
	TypeMissing Type = iota
	TypeBool
	TypeNumeric
	TypeString
	TypeLocation
)

func (t Type) String() string {
	switch t {
	case TypeMissing:
		return "missing"
	case TypeBool:
		return "bool"
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeLocation:
		return "location"
	default:
		return "unknown"
	}
}

// Hit is one matched region within a Location value. SegmentIndex is
// -1 when the hit does not reference a particular segment (e.g. a
// whole-block aggregate match). Coordinates are expressed in the
// original read coordinate frame at the time the tag was produced
// (spec.md §3, TagValue.Location).
type Hit struct {
	SegmentIndex int
	Start        int
	Length       int
	Matched      []byte
}

// Value is the tagged union spec.md §3 calls TagValue. The zero Value
// is Missing.
type Value struct {
	typ      Type
	boolean  bool
	numeric  float64
	str      []byte
	location []Hit
}

// Missing returns the absence-of-value variant.
func Missing() Value { return Value{typ: TypeMissing} }

// Bool returns a Bool-typed value.
func Bool(b bool) Value { return Value{typ: TypeBool, boolean: b} }

// Numeric returns a Numeric-typed value.
func Numeric(f float64) Value { return Value{typ: TypeNumeric, numeric: f} }

// String returns a String-typed value wrapping an opaque byte string.
func String(b []byte) Value { return Value{typ: TypeString, str: b} }

// Location returns a Location-typed value wrapping a list of hits.
func Location(hits []Hit) Value { return Value{typ: TypeLocation, location: hits} }

// Type reports which variant v holds.
func (v Value) Type() Type { return v.typ }

// IsMissing reports whether v is the Missing variant.
func (v Value) IsMissing() bool { return v.typ == TypeMissing }

// Bool returns the boolean payload; ok is false if v is not a Bool.
func (v Value) Bool() (b bool, ok bool) {
	return v.boolean, v.typ == TypeBool
}

// Numeric returns the numeric payload; ok is false if v is not Numeric.
func (v Value) Numeric() (f float64, ok bool) {
	return v.numeric, v.typ == TypeNumeric
}

// StringBytes returns the string payload; ok is false if v is not a String.
func (v Value) StringBytes() (b []byte, ok bool) {
	return v.str, v.typ == TypeString
}

// Hits returns the location payload; ok is false if v is not a Location.
func (v Value) Hits() (hits []Hit, ok bool) {
	return v.location, v.typ == TypeLocation
}

// Accepts reports whether v's type is a member of accepted, the
// per-use accepted-type set a step declares in uses_tags (spec.md §4.2).
func (v Value) Accepts(accepted map[Type]bool) bool {
	return accepted[v.typ]
}

func (v Value) String() string {
	switch v.typ {
	case TypeMissing:
		return "missing"
	case TypeBool:
		return fmt.Sprintf("bool(%v)", v.boolean)
	case TypeNumeric:
		return fmt.Sprintf("numeric(%v)", v.numeric)
	case TypeString:
		return fmt.Sprintf("string(%q)", v.str)
	case TypeLocation:
		return fmt.Sprintf("location(%d hits)", len(v.location))
	default:
		return "invalid"
	}
}

// TypeSet builds an accepted-type set from a variadic list, the shape
// uses_tags returns per spec.md §4.2.
func TypeSet(types ...Type) map[Type]bool {
	m := make(map[Type]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}
