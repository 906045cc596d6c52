package model

import (
	"fmt"
	"math"
	"strings"
)

// Op is a predicate operator.
type Op uint8

const (
	OpHas Op = iota
	OpEq
	OpGe
	OpLe
	OpGt
	OpLt
	OpGtLt
)

var opNames = [...]string{
	OpHas:  "has",
	OpEq:   "eq",
	OpGe:   "ge",
	OpLe:   "le",
	OpGt:   "gt",
	OpLt:   "lt",
	OpGtLt: "gtlt",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp resolves an operator name such as "ge" or "gtlt".
func ParseOp(name string) (Op, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range opNames {
		if n == name {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown predicate operator %q", ErrInvalidArgument, name)
}

// arity is the number of bound values each operator takes.
func (o Op) arity() int {
	switch o {
	case OpHas:
		return 0
	case OpGtLt:
		return 2
	}
	return 1
}

// PropertyPredicate restricts a query to objects whose value for Key
// satisfies Op against the bound values. Lo is the only bound for the
// single-value operators; Hi is used by OpGtLt alone.
type PropertyPredicate struct {
	Key string
	Op  Op
	Lo  Property
	Hi  Property
}

// NewPredicate validates and builds a predicate.
func NewPredicate(key string, op Op, values ...Property) (PropertyPredicate, error) {
	if err := ValidateKey(key); err != nil {
		return PropertyPredicate{}, err
	}
	if op > OpGtLt {
		return PropertyPredicate{}, fmt.Errorf("%w: unknown predicate operator %d", ErrInvalidArgument, op)
	}
	if len(values) != op.arity() {
		return PropertyPredicate{}, fmt.Errorf("%w: %s takes %d value(s), got %d", ErrInvalidArgument, op, op.arity(), len(values))
	}

	p := PropertyPredicate{Key: key, Op: op}
	if len(values) > 0 {
		p.Lo = values[0]
	}
	if len(values) > 1 {
		p.Hi = values[1]
	}
	if err := p.Validate(); err != nil {
		return PropertyPredicate{}, err
	}
	return p, nil
}

// Has matches objects that have any value for key.
func Has(key string) (PropertyPredicate, error) { return NewPredicate(key, OpHas) }

// Eq matches objects whose value for key equals v.
func Eq(key string, v Property) (PropertyPredicate, error) { return NewPredicate(key, OpEq, v) }

// Ge matches objects whose value for key is at least v.
func Ge(key string, v Property) (PropertyPredicate, error) { return NewPredicate(key, OpGe, v) }

// Le matches objects whose value for key is at most v.
func Le(key string, v Property) (PropertyPredicate, error) { return NewPredicate(key, OpLe, v) }

// Gt matches objects whose value for key is greater than v.
func Gt(key string, v Property) (PropertyPredicate, error) { return NewPredicate(key, OpGt, v) }

// Lt matches objects whose value for key is less than v.
func Lt(key string, v Property) (PropertyPredicate, error) { return NewPredicate(key, OpLt, v) }

// GtLt matches objects whose value for key lies strictly between lo and hi.
func GtLt(key string, lo, hi Property) (PropertyPredicate, error) {
	return NewPredicate(key, OpGtLt, lo, hi)
}

// Validate checks the bound values against the operator.
func (p PropertyPredicate) Validate() error {
	if err := ValidateKey(p.Key); err != nil {
		return err
	}
	switch p.Op {
	case OpHas:
		return nil
	case OpEq:
		return nil
	case OpGe, OpLe, OpGt, OpLt:
		return checkBound(p.Op, p.Lo)
	case OpGtLt:
		if err := checkBound(p.Op, p.Lo); err != nil {
			return err
		}
		if err := checkBound(p.Op, p.Hi); err != nil {
			return err
		}
		c, err := Compare(p.Lo, p.Hi)
		if err != nil {
			return fmt.Errorf("%w: gtlt bounds of different kinds (%s, %s)", ErrInvalidArgument, p.Lo.Kind(), p.Hi.Kind())
		}
		if c >= 0 {
			return fmt.Errorf("%w: gtlt requires lo < hi, got %s >= %s", ErrInvalidArgument, p.Lo, p.Hi)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown predicate operator %d", ErrInvalidArgument, p.Op)
}

func checkBound(op Op, v Property) error {
	if !v.Kind().Ordered() {
		return fmt.Errorf("%w: %s cannot bound a %s range", ErrInvalidArgument, v.Kind(), op)
	}
	if v.Kind() == KindFloat && math.IsNaN(v.f) {
		return fmt.Errorf("%w: NaN cannot bound a %s range", ErrInvalidArgument, op)
	}
	return nil
}

func (p PropertyPredicate) String() string {
	switch p.Op {
	case OpHas:
		return fmt.Sprintf("%s(%s)", p.Op, p.Key)
	case OpGtLt:
		return fmt.Sprintf("%s(%s, %s, %s)", p.Op, p.Key, p.Lo, p.Hi)
	}
	return fmt.Sprintf("%s(%s, %s)", p.Op, p.Key, p.Lo)
}
