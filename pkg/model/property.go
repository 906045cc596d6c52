package model

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the discriminant of a Property value.
type Kind uint8

// The order of the kinds is also the order of values of different kinds
// inside a property index.
const (
	KindNoValue Kind = iota
	KindBool
	KindInt
	KindString
	KindFloat
	KindTime
	KindBlob
)

var kindNames = [...]string{
	KindNoValue: "novalue",
	KindBool:    "bool",
	KindInt:     "int",
	KindString:  "string",
	KindFloat:   "float",
	KindTime:    "time",
	KindBlob:    "blob",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k <= KindBlob
}

// Ordered reports whether values of kind k can be used as range bounds.
func (k Kind) Ordered() bool {
	switch k {
	case KindBool, KindInt, KindString, KindFloat, KindTime:
		return true
	}
	return false
}

// Property is a typed property value. The zero value holds no value.
type Property struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	b    []byte
}

// NewBool creates a boolean property.
func NewBool(v bool) Property {
	p := Property{kind: KindBool}
	if v {
		p.i = 1
	}
	return p
}

// NewInt creates an integer property.
func NewInt(v int64) Property { return Property{kind: KindInt, i: v} }

// NewString creates a string property.
func NewString(v string) Property { return Property{kind: KindString, s: v} }

// NewFloat creates a float property.
func NewFloat(v float64) Property { return Property{kind: KindFloat, f: v} }

// NewTime creates a time property. The monotonic clock reading is dropped so
// that values survive a round trip through storage unchanged.
func NewTime(v time.Time) Property { return Property{kind: KindTime, t: v.Round(0)} }

// NewBlob creates a blob property holding a copy of v.
func NewBlob(v []byte) Property {
	return Property{kind: KindBlob, b: bytes.Clone(nonNil(v))}
}

func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

// ZeroOf returns the zero value of kind k: false, 0, "", 0.0, the zero
// time or an empty blob.
func ZeroOf(k Kind) Property {
	p := Property{kind: k}
	if k == KindBlob {
		p.b = []byte{}
	}
	return p
}

// PropertyOf infers the kind of v from its Go type. A nil v yields a
// property with no value.
func PropertyOf(v any) (Property, error) {
	switch x := v.(type) {
	case nil:
		return Property{}, nil
	case Property:
		return x, nil
	case bool:
		return NewBool(x), nil
	case int:
		return NewInt(int64(x)), nil
	case int8:
		return NewInt(int64(x)), nil
	case int16:
		return NewInt(int64(x)), nil
	case int32:
		return NewInt(int64(x)), nil
	case int64:
		return NewInt(x), nil
	case uint8:
		return NewInt(int64(x)), nil
	case uint16:
		return NewInt(int64(x)), nil
	case uint32:
		return NewInt(int64(x)), nil
	case uint:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	case string:
		return NewString(x), nil
	case float32:
		return NewFloat(float64(x)), nil
	case float64:
		return NewFloat(x), nil
	case time.Time:
		return NewTime(x), nil
	case []byte:
		return NewBlob(x), nil
	}
	return Property{}, fmt.Errorf("%w: unsupported property type %T", ErrInvalidArgument, v)
}

func fromUint(v uint64) (Property, error) {
	if v > math.MaxInt64 {
		return Property{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidArgument, v)
	}
	return NewInt(int64(v)), nil
}

// Kind returns the kind of the stored value.
func (p Property) Kind() Kind { return p.kind }

// IsNoValue reports whether p holds no value.
func (p Property) IsNoValue() bool { return p.kind == KindNoValue }

func (p Property) expect(k Kind) error {
	if p.kind != k {
		return &TypeMismatchError{Want: k, Got: p.kind}
	}
	return nil
}

// BoolValue returns the boolean value.
func (p Property) BoolValue() (bool, error) {
	if err := p.expect(KindBool); err != nil {
		return false, err
	}
	return p.i != 0, nil
}

// IntValue returns the integer value.
func (p Property) IntValue() (int64, error) {
	if err := p.expect(KindInt); err != nil {
		return 0, err
	}
	return p.i, nil
}

// StringValue returns the string value.
func (p Property) StringValue() (string, error) {
	if err := p.expect(KindString); err != nil {
		return "", err
	}
	return p.s, nil
}

// FloatValue returns the float value.
func (p Property) FloatValue() (float64, error) {
	if err := p.expect(KindFloat); err != nil {
		return 0, err
	}
	return p.f, nil
}

// TimeValue returns the time value.
func (p Property) TimeValue() (time.Time, error) {
	if err := p.expect(KindTime); err != nil {
		return time.Time{}, err
	}
	return p.t, nil
}

// BlobValue returns a copy of the blob value.
func (p Property) BlobValue() ([]byte, error) {
	if err := p.expect(KindBlob); err != nil {
		return nil, err
	}
	return bytes.Clone(p.b), nil
}

// Interface returns the value as a plain Go value, nil for no value.
func (p Property) Interface() any {
	switch p.kind {
	case KindBool:
		return p.i != 0
	case KindInt:
		return p.i
	case KindString:
		return p.s
	case KindFloat:
		return p.f
	case KindTime:
		return p.t
	case KindBlob:
		return bytes.Clone(p.b)
	}
	return nil
}

// Equal reports whether p and o have the same kind and content.
func (p Property) Equal(o Property) bool {
	if p.kind != o.kind {
		return false
	}
	c, _ := Compare(p, o)
	return c == 0
}

// Compare orders two values of the same kind. Values of different kinds are
// not comparable and yield a TypeMismatchError. Blobs compare bytewise,
// which is only meaningful for equality.
func Compare(a, b Property) (int, error) {
	if a.kind != b.kind {
		return 0, &TypeMismatchError{Want: a.kind, Got: b.kind}
	}
	return compareSameKind(a, b), nil
}

// CompareOrdered orders values of any kind: first by kind, then by value.
// Property indexes use this order.
func CompareOrdered(a, b Property) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	return compareSameKind(a, b)
}

func compareSameKind(a, b Property) int {
	switch a.kind {
	case KindBool, KindInt:
		return cmp.Compare(a.i, b.i)
	case KindString:
		return cmp.Compare(a.s, b.s)
	case KindFloat:
		return cmp.Compare(a.f, b.f)
	case KindTime:
		return a.t.Compare(b.t)
	case KindBlob:
		return bytes.Compare(a.b, b.b)
	}
	return 0
}

// String renders the value for display.
func (p Property) String() string {
	switch p.kind {
	case KindBool:
		return strconv.FormatBool(p.i != 0)
	case KindInt:
		return strconv.FormatInt(p.i, 10)
	case KindString:
		return strconv.Quote(p.s)
	case KindFloat:
		return strconv.FormatFloat(p.f, 'g', -1, 64)
	case KindTime:
		return p.t.Format(time.RFC3339Nano)
	case KindBlob:
		return fmt.Sprintf("blob(%d bytes)", len(p.b))
	}
	return "<novalue>"
}
