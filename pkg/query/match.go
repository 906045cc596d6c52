package query

import (
	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/storage"
)

// Matches reports whether an object satisfies pred. present is false when the
// object has no value for the predicate key. A bound of a different kind than
// the stored value never matches.
func Matches(pred model.PropertyPredicate, value model.Property, present bool) bool {
	if !present {
		return false
	}
	switch pred.Op {
	case model.OpHas:
		return true
	case model.OpEq:
		return value.Equal(pred.Lo)
	}
	return SpanFor(pred).Contains(value)
}

// SpanFor derives the index span that holds exactly the values satisfying pred.
func SpanFor(pred model.PropertyPredicate) storage.Span {
	lo, hi := pred.Lo, pred.Hi
	switch pred.Op {
	case model.OpEq:
		return storage.Span{Kind: lo.Kind(), Lo: &lo, Hi: &lo, LoInclusive: true, HiInclusive: true}
	case model.OpGe:
		return storage.Span{Kind: lo.Kind(), Lo: &lo, LoInclusive: true}
	case model.OpGt:
		return storage.Span{Kind: lo.Kind(), Lo: &lo}
	case model.OpLe:
		return storage.Span{Kind: lo.Kind(), Hi: &lo, HiInclusive: true}
	case model.OpLt:
		return storage.Span{Kind: lo.Kind(), Hi: &lo}
	case model.OpGtLt:
		return storage.Span{Kind: lo.Kind(), Lo: &lo, Hi: &hi}
	}
	return storage.Span{AllKinds: true}
}
