package storage

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// LabelIndex maps each tag to the set of object ids carrying it. Untagged
// objects are not indexed.
type LabelIndex struct {
	labels map[string]*roaring64.Bitmap
}

// NewLabelIndex creates an empty label index.
func NewLabelIndex() *LabelIndex {
	return &LabelIndex{labels: make(map[string]*roaring64.Bitmap)}
}

// Add records that id carries label.
func (li *LabelIndex) Add(label string, id uint64) {
	if label == "" {
		return
	}
	bm, ok := li.labels[label]
	if !ok {
		bm = roaring64.New()
		li.labels[label] = bm
	}
	bm.Add(id)
}

// Bitmap returns the ids carrying label. The result is shared with the index
// and must not be modified; it is nil when no object carries label.
func (li *LabelIndex) Bitmap(label string) *roaring64.Bitmap {
	return li.labels[label]
}

// Count returns the number of objects carrying label.
func (li *LabelIndex) Count(label string) uint64 {
	if bm, ok := li.labels[label]; ok {
		return bm.GetCardinality()
	}
	return 0
}

// Labels returns every indexed label in byte order.
func (li *LabelIndex) Labels() []string {
	out := make([]string, 0, len(li.labels))
	for l := range li.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
