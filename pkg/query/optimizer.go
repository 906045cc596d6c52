package query

import (
	"fmt"
	"strconv"
	"strings"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// Optimizer normalizes parsed queries before execution
type Optimizer struct {
	EnablePathLengthLimit bool
	DefaultMaxHops        int
}

// NewOptimizer creates a new query optimizer
func NewOptimizer() *Optimizer {
	return &Optimizer{
		EnablePathLengthLimit: true,
		DefaultMaxHops:        5,
	}
}

// Optimize returns a normalized copy of query.
func (o *Optimizer) Optimize(query *Query) (*Query, error) {
	if query == nil {
		return nil, fmt.Errorf("%w: query is nil", model.ErrInvalidArgument)
	}

	optimized := &Query{
		Type:       query.Type,
		Parameters: make(map[string]string, len(query.Parameters)),
	}
	for k, v := range query.Parameters {
		optimized.Parameters[k] = v
	}

	switch query.Type {
	case QueryTypeFindNodes, QueryTypeFindEdges:
		o.optimizePropertyQuery(optimized)
	case QueryTypeFindNeighbors:
		o.optimizeNeighborsQuery(optimized)
	case QueryTypeFindPath:
		o.optimizePathQuery(optimized)
	default:
		return nil, fmt.Errorf("%w: unsupported query type: %s", ErrInvalidQuery, query.Type)
	}

	return optimized, nil
}

// optimizeNeighborsQuery optimizes a FIND_NEIGHBORS query
func (o *Optimizer) optimizeNeighborsQuery(query *Query) {
	if _, ok := query.Parameters[ParamDirection]; !ok {
		query.Parameters[ParamDirection] = DirectionBoth
	}
}

// optimizePathQuery bounds the search depth of a FIND_PATH query
func (o *Optimizer) optimizePathQuery(query *Query) {
	if !o.EnablePathLengthLimit {
		return
	}
	maxHops, err := strconv.Atoi(query.Parameters[ParamMaxHops])
	switch {
	case err != nil || maxHops <= 0:
		query.Parameters[ParamMaxHops] = strconv.Itoa(o.DefaultMaxHops)
	case maxHops > o.DefaultMaxHops*2:
		query.Parameters[ParamMaxHops] = strconv.Itoa(o.DefaultMaxHops * 2)
	}
}

// optimizePropertyQuery drops a predicate operator that has no key and
// defaults a keyed query without operator to a presence test.
func (o *Optimizer) optimizePropertyQuery(query *Query) {
	key, hasKey := query.Parameters[ParamKey]
	if !hasKey {
		delete(query.Parameters, ParamOp)
		delete(query.Parameters, ParamValue)
		delete(query.Parameters, ParamValue2)
		return
	}
	query.Parameters[ParamKey] = strings.TrimSpace(key)
	if _, ok := query.Parameters[ParamOp]; !ok {
		query.Parameters[ParamOp] = model.OpHas.String()
	}
}
