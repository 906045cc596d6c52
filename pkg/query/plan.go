package query

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// RangeScanner is the ordered range scan primitive the planner is built on.
// The storage layer decides whether a key can be served from an index.
type RangeScanner interface {
	// ScanRange returns the ids of committed objects whose value for key
	// satisfies pred. ok is false when key has no index.
	ScanRange(key string, pred model.PropertyPredicate) (ids *roaring64.Bitmap, ok bool)
}

// Source is the committed state a query is planned against.
type Source interface {
	RangeScanner
	// Tagged returns the committed ids carrying tag. The bitmap must not be
	// modified; nil means none.
	Tagged(tag string) *roaring64.Bitmap
}

// Filter is a tag and predicate query over nodes or edges. An empty Tag
// means no tag filter.
type Filter struct {
	Tag       string
	Predicate *model.PropertyPredicate
}

// Strategy names how the candidates of a plan were found.
type Strategy uint8

const (
	// StrategyFullScan visits every committed object.
	StrategyFullScan Strategy = iota
	// StrategyTagScan visits the objects carrying the tag.
	StrategyTagScan
	// StrategyIndexScan visits the objects an ordered index returned.
	StrategyIndexScan
)

func (s Strategy) String() string {
	switch s {
	case StrategyTagScan:
		return "tag-scan"
	case StrategyIndexScan:
		return "index-scan"
	}
	return "full-scan"
}

// Plan describes the committed objects a query has to consider.
type Plan struct {
	Strategy Strategy
	// Candidates holds the committed ids to visit in id order; nil means
	// every committed id. The bitmap is owned by the plan.
	Candidates *roaring64.Bitmap
	// TagExact is set when every candidate carries the tag.
	TagExact bool
	// PredicateExact is set when every candidate satisfies the predicate
	// on its committed value.
	PredicateExact bool
}

// Planner picks the cheapest committed candidate set for a filter.
type Planner struct {
	src Source
}

// NewPlanner creates a planner over src.
func NewPlanner(src Source) *Planner {
	return &Planner{src: src}
}

// Plan builds the plan for f.
func (p *Planner) Plan(f Filter) Plan {
	var plan Plan

	if f.Predicate != nil {
		if ids, ok := p.src.ScanRange(f.Predicate.Key, *f.Predicate); ok {
			plan.Strategy = StrategyIndexScan
			plan.Candidates = ids
			plan.PredicateExact = true
		}
	}

	if f.Tag != "" {
		tagged := p.src.Tagged(f.Tag)
		if tagged == nil {
			tagged = roaring64.New()
		}
		if plan.Candidates == nil {
			plan.Strategy = StrategyTagScan
			plan.Candidates = tagged.Clone()
		} else {
			plan.Candidates.And(tagged)
		}
		plan.TagExact = true
	}

	if f.Predicate == nil {
		plan.PredicateExact = true
	}
	if f.Tag == "" {
		plan.TagExact = true
	}
	return plan
}

// Accept reports whether a committed object passes f, given what the plan
// already guarantees about it.
func (plan Plan) Accept(f Filter, tag string, lookup func(key string) (model.Property, bool)) bool {
	if !plan.TagExact && tag != f.Tag {
		return false
	}
	if !plan.PredicateExact {
		v, ok := lookup(f.Predicate.Key)
		return Matches(*f.Predicate, v, ok)
	}
	return true
}

// Match reports whether an object passes f with nothing known in advance.
func (f Filter) Match(tag string, lookup func(key string) (model.Property, bool)) bool {
	return Plan{TagExact: f.Tag == "", PredicateExact: f.Predicate == nil}.Accept(f, tag, lookup)
}
