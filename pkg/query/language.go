package query

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// QueryType represents the different types of queries supported
type QueryType string

const (
	QueryTypeFindNodes     QueryType = "FIND_NODES"
	QueryTypeFindEdges     QueryType = "FIND_EDGES"
	QueryTypeFindNeighbors QueryType = "FIND_NEIGHBORS"
	QueryTypeFindPath      QueryType = "FIND_PATH"
)

// Query represents a parsed query
type Query struct {
	Type       QueryType         `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

// Parameter keys
const (
	ParamTag       = "tag"
	ParamKey       = "key"
	ParamOp        = "op"
	ParamValue     = "value"
	ParamValue2    = "value2"
	ParamReverse   = "reverse"
	ParamNodeID    = "nodeId"
	ParamDirection = "direction"
	ParamMaxHops   = "maxHops"
	ParamSourceID  = "sourceId"
	ParamTargetID  = "targetId"
)

// Direction types for traversal
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionBoth     = "both"
)

// ErrInvalidQuery indicates that the query is invalid
var ErrInvalidQuery = fmt.Errorf("%w: invalid query", model.ErrInvalidArgument)

// Parse parses a query string into a Query struct
// The query language is a simple string format:
// FIND_NODES(tag: "Person", key: "Age", op: "ge", value: "int:26")
// FIND_EDGES(tag: "KNOWS", reverse: "true")
// FIND_NEIGHBORS(nodeId: "1", direction: "outgoing", tag: "KNOWS")
// FIND_PATH(sourceId: "1", targetId: "2", maxHops: "3")
// A JSON document of the same shape is accepted as well.
func Parse(queryStr string) (*Query, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	if strings.HasPrefix(queryStr, "{") {
		var query Query
		if err := json.Unmarshal([]byte(queryStr), &query); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidQuery, err)
		}
		if query.Parameters == nil {
			query.Parameters = make(map[string]string)
		}
		if err := validateQuery(&query); err != nil {
			return nil, err
		}
		return &query, nil
	}

	openParenIndex := strings.Index(queryStr, "(")
	if openParenIndex == -1 {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidQuery)
	}

	closeParenIndex := strings.LastIndex(queryStr, ")")
	if closeParenIndex == -1 || closeParenIndex <= openParenIndex {
		return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidQuery)
	}

	query := &Query{
		Type:       QueryType(strings.TrimSpace(queryStr[:openParenIndex])),
		Parameters: make(map[string]string),
	}

	pairs, err := splitParams(queryStr[openParenIndex+1 : closeParenIndex])
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: invalid parameter format: %s", ErrInvalidQuery, pair)
		}

		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if strings.HasPrefix(value, "\"") {
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad quoted value for %s: %v", ErrInvalidQuery, key, err)
			}
			value = unquoted
		}
		query.Parameters[key] = value
	}

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	return query, nil
}

// splitParams splits on commas outside double quotes.
func splitParams(s string) ([]string, error) {
	var (
		out     []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote", ErrInvalidQuery)
	}
	out = append(out, s[start:])

	pairs := out[:0]
	for _, p := range out {
		if p = strings.TrimSpace(p); p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// validateQuery validates that the query has all required parameters
func validateQuery(query *Query) error {
	switch query.Type {
	case QueryTypeFindNodes, QueryTypeFindEdges:
		if _, err := query.Predicate(); err != nil {
			return err
		}
		if r, ok := query.Parameters[ParamReverse]; ok {
			if _, err := strconv.ParseBool(r); err != nil {
				return fmt.Errorf("%w: invalid reverse parameter %q", ErrInvalidQuery, r)
			}
		}
	case QueryTypeFindNeighbors:
		if err := requireID(query, ParamNodeID); err != nil {
			return err
		}
		if dir, ok := query.Parameters[ParamDirection]; ok {
			if dir != DirectionOutgoing && dir != DirectionIncoming && dir != DirectionBoth {
				return fmt.Errorf("%w: invalid direction parameter, must be 'outgoing', 'incoming', or 'both'", ErrInvalidQuery)
			}
		}
	case QueryTypeFindPath:
		if err := requireID(query, ParamSourceID); err != nil {
			return err
		}
		if err := requireID(query, ParamTargetID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown query type: %s", ErrInvalidQuery, query.Type)
	}
	return nil
}

func requireID(query *Query, param string) error {
	v, ok := query.Parameters[param]
	if !ok {
		return fmt.Errorf("%w: missing required parameter '%s'", ErrInvalidQuery, param)
	}
	if _, err := strconv.ParseUint(v, 10, 64); err != nil {
		return fmt.Errorf("%w: parameter '%s' is not an id: %q", ErrInvalidQuery, param, v)
	}
	return nil
}

// Predicate builds the property predicate named by the key, op, value and
// value2 parameters. It returns nil when the query has no key.
func (q *Query) Predicate() (*model.PropertyPredicate, error) {
	key, ok := q.Parameters[ParamKey]
	if !ok {
		return nil, nil
	}

	op := model.OpHas
	if name, ok := q.Parameters[ParamOp]; ok {
		parsed, err := model.ParseOp(name)
		if err != nil {
			return nil, err
		}
		op = parsed
	}

	var values []model.Property
	for _, param := range []string{ParamValue, ParamValue2} {
		raw, ok := q.Parameters[param]
		if !ok {
			break
		}
		v, err := ParseValue(raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	pred, err := model.NewPredicate(key, op, values...)
	if err != nil {
		return nil, err
	}
	return &pred, nil
}

// ParseValue reads a typed literal. An optional kind prefix selects the
// kind: "int:26", "float:1.5", "bool:true", "time:2024-01-02T15:04:05Z",
// "blob:00ff", "str:x" or "none:". Without a prefix the literal is a string.
func ParseValue(s string) (model.Property, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return model.NewString(s), nil
	}

	bad := func(err error) (model.Property, error) {
		return model.Property{}, fmt.Errorf("%w: bad %s literal %q: %v", ErrInvalidQuery, kind, rest, err)
	}

	switch kind {
	case "int":
		v, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return bad(err)
		}
		return model.NewInt(v), nil
	case "float":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return bad(err)
		}
		return model.NewFloat(v), nil
	case "bool":
		v, err := strconv.ParseBool(rest)
		if err != nil {
			return bad(err)
		}
		return model.NewBool(v), nil
	case "time":
		v, err := time.Parse(time.RFC3339Nano, rest)
		if err != nil {
			return bad(err)
		}
		return model.NewTime(v), nil
	case "blob":
		v, err := hex.DecodeString(rest)
		if err != nil {
			return bad(err)
		}
		return model.NewBlob(v), nil
	case "str":
		return model.NewString(rest), nil
	case "none":
		return model.Property{}, nil
	}
	// Not a kind prefix, e.g. "http://x".
	return model.NewString(s), nil
}

// Reverse reports whether results were requested in descending id order.
func (q *Query) Reverse() bool {
	r, _ := strconv.ParseBool(q.Parameters[ParamReverse])
	return r
}

// String returns a string representation of the query with parameters in
// key order.
func (q *Query) String() string {
	keys := make([]string, 0, len(q.Parameters))
	for k := range q.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(string(q.Type))
	sb.WriteString("(")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(strconv.Quote(q.Parameters[k]))
	}
	sb.WriteString(")")
	return sb.String()
}
