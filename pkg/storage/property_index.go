package storage

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

const propertyIndexDegree = 32

// Span selects a contiguous run of an ordered property index. Unless
// AllKinds is set only values of Kind are visited; a nil Lo or Hi leaves that
// side unbounded within the kind.
type Span struct {
	AllKinds    bool
	Kind        model.Kind
	Lo, Hi      *model.Property
	LoInclusive bool
	HiInclusive bool
}

// Contains reports whether v falls inside the span.
func (s Span) Contains(v model.Property) bool {
	if s.AllKinds {
		return true
	}
	if v.Kind() != s.Kind {
		return false
	}
	if s.Lo != nil {
		c := model.CompareOrdered(v, *s.Lo)
		if c < 0 || (c == 0 && !s.LoInclusive) {
			return false
		}
	}
	if s.Hi != nil {
		c := model.CompareOrdered(v, *s.Hi)
		if c > 0 || (c == 0 && !s.HiInclusive) {
			return false
		}
	}
	return true
}

type indexEntry struct {
	value model.Property
	id    uint64
	// floor sorts before every real entry of the same kind.
	floor bool
}

func lessEntry(a, b indexEntry) bool {
	if a.value.Kind() != b.value.Kind() {
		return a.value.Kind() < b.value.Kind()
	}
	if a.floor != b.floor {
		return a.floor
	}
	if c := model.CompareOrdered(a.value, b.value); c != 0 {
		return c < 0
	}
	return a.id < b.id
}

// PropertyIndex keeps the (value, id) pairs of one property key in value
// order, so range predicates on that key are served without a full scan.
type PropertyIndex struct {
	tree *btree.BTreeG[indexEntry]
}

// NewPropertyIndex creates an empty index.
func NewPropertyIndex() *PropertyIndex {
	return &PropertyIndex{tree: btree.NewG(propertyIndexDegree, lessEntry)}
}

// Insert indexes value for id.
func (pi *PropertyIndex) Insert(id uint64, value model.Property) {
	pi.tree.ReplaceOrInsert(indexEntry{value: value, id: id})
}

// Delete removes the entry for id holding value.
func (pi *PropertyIndex) Delete(id uint64, value model.Property) {
	pi.tree.Delete(indexEntry{value: value, id: id})
}

// Scan visits the ids whose value lies in span, in value order, until fn
// returns false.
func (pi *PropertyIndex) Scan(span Span, fn func(id uint64) bool) {
	if span.AllKinds {
		pi.tree.Ascend(func(e indexEntry) bool { return fn(e.id) })
		return
	}

	pivot := indexEntry{value: model.ZeroOf(span.Kind), floor: true}
	if span.Lo != nil {
		if span.Lo.Kind() != span.Kind {
			return
		}
		// Ids start at 1, so id 0 sorts before every entry equal to Lo.
		pivot = indexEntry{value: *span.Lo}
	}

	pi.tree.AscendGreaterOrEqual(pivot, func(e indexEntry) bool {
		if e.value.Kind() != span.Kind {
			return false
		}
		if span.Lo != nil && !span.LoInclusive && model.CompareOrdered(e.value, *span.Lo) == 0 {
			return true
		}
		if span.Hi != nil {
			c := model.CompareOrdered(e.value, *span.Hi)
			if c > 0 || (c == 0 && !span.HiInclusive) {
				return false
			}
		}
		return fn(e.id)
	})
}

// Collect returns the ids in span as a bitmap.
func (pi *PropertyIndex) Collect(span Span) *roaring64.Bitmap {
	bm := roaring64.New()
	pi.Scan(span, func(id uint64) bool {
		bm.Add(id)
		return true
	})
	return bm
}
