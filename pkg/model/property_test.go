package model

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

func TestZeroPropertyHasNoValue(t *testing.T) {
	var p Property
	if p.Kind() != KindNoValue || !p.IsNoValue() {
		t.Errorf("Expected the zero property to have no value, got kind %v", p.Kind())
	}
	if p.Interface() != nil {
		t.Errorf("Expected nil interface value, got %v", p.Interface())
	}
}

func TestTypedAccessors(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 42, time.UTC)

	if b, err := NewBool(true).BoolValue(); err != nil || !b {
		t.Errorf("Expected true, got %v (%v)", b, err)
	}
	if i, err := NewInt(-7).IntValue(); err != nil || i != -7 {
		t.Errorf("Expected -7, got %d (%v)", i, err)
	}
	if s, err := NewString("katelin").StringValue(); err != nil || s != "katelin" {
		t.Errorf("Expected katelin, got %q (%v)", s, err)
	}
	if f, err := NewFloat(2.5).FloatValue(); err != nil || f != 2.5 {
		t.Errorf("Expected 2.5, got %v (%v)", f, err)
	}
	if tm, err := NewTime(now).TimeValue(); err != nil || !tm.Equal(now) {
		t.Errorf("Expected %v, got %v (%v)", now, tm, err)
	}

	raw := []byte{1, 2, 3}
	blob := NewBlob(raw)
	raw[0] = 9
	got, err := blob.BlobValue()
	if err != nil {
		t.Fatalf("Failed to read blob: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Expected blob to be copied on construction, got %v", got)
	}
}

func TestAccessorTypeMismatch(t *testing.T) {
	_, err := NewString("26").IntValue()
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Expected ErrTypeMismatch, got %v", err)
	}

	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected a *TypeMismatchError, got %T", err)
	}
	if mismatch.Want != KindInt || mismatch.Got != KindString {
		t.Errorf("Expected want int got string, got want %v got %v", mismatch.Want, mismatch.Got)
	}

	if _, err := (Property{}).BoolValue(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch reading a bool from no value, got %v", err)
	}
}

func TestPropertyOf(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
	}{
		{nil, KindNoValue},
		{true, KindBool},
		{26, KindInt},
		{int32(3), KindInt},
		{uint16(3), KindInt},
		{"x", KindString},
		{float32(1.5), KindFloat},
		{1.5, KindFloat},
		{time.Now(), KindTime},
		{[]byte("x"), KindBlob},
		{NewInt(1), KindInt},
	}
	for _, tt := range tests {
		p, err := PropertyOf(tt.in)
		if err != nil {
			t.Fatalf("Failed to convert %T: %v", tt.in, err)
		}
		if p.Kind() != tt.kind {
			t.Errorf("Expected %T to convert to kind %v, got %v", tt.in, tt.kind, p.Kind())
		}
	}

	if _, err := PropertyOf(struct{}{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a struct, got %v", err)
	}
	if _, err := PropertyOf(uint64(math.MaxUint64)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for an overflowing uint64, got %v", err)
	}
}

func TestCompareWithinKind(t *testing.T) {
	early := time.Unix(100, 0)
	late := time.Unix(200, 0)

	tests := []struct {
		a, b Property
		want int
	}{
		{NewBool(false), NewBool(true), -1},
		{NewInt(3), NewInt(3), 0},
		{NewInt(10), NewInt(-1), 1},
		{NewString("alain"), NewString("philip"), -1},
		{NewString("B"), NewString("a"), -1},
		{NewFloat(0.5), NewFloat(0.25), 1},
		{NewTime(early), NewTime(late), -1},
		{NewBlob([]byte{1}), NewBlob([]byte{1}), 0},
		{Property{}, Property{}, 0},
	}
	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		if err != nil {
			t.Fatalf("Failed to compare %s and %s: %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareAcrossKinds(t *testing.T) {
	if _, err := Compare(NewInt(1), NewFloat(1)); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch comparing int and float, got %v", err)
	}
	if NewInt(1).Equal(NewFloat(1)) {
		t.Error("Expected int 1 and float 1 to differ")
	}
	if NewString("").Equal(Property{}) {
		t.Error("Expected the empty string and no value to differ")
	}
}

func TestCompareOrderedSortsByKindFirst(t *testing.T) {
	if CompareOrdered(NewInt(1000), NewString("a")) >= 0 {
		t.Error("Expected ints to sort before strings")
	}
	if CompareOrdered(NewBlob(nil), NewTime(time.Unix(0, 0))) <= 0 {
		t.Error("Expected blobs to sort after times")
	}
	if CompareOrdered(NewString("a"), NewString("a")) != 0 {
		t.Error("Expected equal strings to compare equal")
	}
}

func TestTimeEqualityIgnoresLocation(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !NewTime(ts).Equal(NewTime(ts.In(time.FixedZone("x", 3600)))) {
		t.Error("Expected the same instant in two zones to be equal")
	}
}
