// Package emit assembles the Elasticsearch-shaped JSON leaves the parser
// hands back up: term/range/bool/function_score nodes and the match_none
// sentinel, plus the date-folding arithmetic that turns a relative or
// truncated absolute date fragment into a concrete instant range.
package emit

import (
	"bytes"
	"encoding/json"
)

// kv is one key/value pair in an Obj.
type kv struct {
	Key string
	Val any
}

// Pair constructs a kv for use with Object.
func Pair(key string, val any) kv {
	return kv{Key: key, Val: val}
}

// Obj is a JSON object that marshals its keys in the order they were
// supplied, not the alphabetical order map[string]any would produce.
// Every node this package builds has at most a couple of keys and the
// output shape is part of the compiler's contract, so insertion order
// has to be exact rather than incidental.
type Obj []kv

// Object builds an Obj from a list of pairs.
func Object(pairs ...kv) Obj {
	return Obj(pairs)
}

// MarshalJSON implements json.Marshaler, writing keys in insertion order.
func (o Obj) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.Val)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RangeOp is one of the five range operators a typed field value can carry.
type RangeOp int

const (
	RangeEq RangeOp = iota
	RangeLt
	RangeLte
	RangeGt
	RangeGte
)

func (op RangeOp) String() string {
	switch op {
	case RangeEq:
		return ":"
	case RangeLt:
		return ".lt:"
	case RangeLte:
		return ".lte:"
	case RangeGt:
		return ".gt:"
	case RangeGte:
		return ".gte:"
	default:
		return "?"
	}
}

// Term builds {"term": {field: value}}.
func Term(field string, value any) Obj {
	return Object(Pair("term", Object(Pair(field, value))))
}

// TermRange builds the term/range node for a plain (non-fuzzed) int/float
// value: RangeEq is a term match, the other four operators are one-sided
// ranges.
func TermRange(field string, op RangeOp, value any) Obj {
	if op == RangeEq {
		return Term(field, value)
	}
	return Object(Pair("range", Object(Pair(field, Object(Pair(rangeKey(op), value))))))
}

// FuzzRange builds {"range": {field: {"gte": value-fuzz, "lte": value+fuzz}}}.
// Fuzz magnitude is the absolute value of fuzz.
func FuzzRange(field string, value, fuzz float64) Obj {
	if fuzz < 0 {
		fuzz = -fuzz
	}
	return Object(Pair("range", Object(Pair(field, Object(
		Pair("gte", value-fuzz),
		Pair("lte", value+fuzz),
	)))))
}

// DateRange builds the range node for a date field given the folded
// [lower, upper) instant bounds, both already formatted. The operator-to-
// bound mapping is intentionally asymmetric: RangeLt/RangeGte use lower,
// RangeLte/RangeGt use upper, RangeEq uses the full half-open interval.
func DateRange(field string, op RangeOp, lower, upper string) Obj {
	switch op {
	case RangeEq:
		return Object(Pair("range", Object(Pair(field, Object(
			Pair("gte", lower),
			Pair("lt", upper),
		)))))
	case RangeLt:
		return Object(Pair("range", Object(Pair(field, Object(Pair("lt", lower))))))
	case RangeLte:
		return Object(Pair("range", Object(Pair(field, Object(Pair("lte", upper))))))
	case RangeGt:
		return Object(Pair("range", Object(Pair(field, Object(Pair("gt", upper))))))
	case RangeGte:
		return Object(Pair("range", Object(Pair(field, Object(Pair("gte", lower))))))
	default:
		return Object(Pair("range", Object(Pair(field, Object()))))
	}
}

func rangeKey(op RangeOp) string {
	switch op {
	case RangeLt:
		return "lt"
	case RangeLte:
		return "lte"
	case RangeGt:
		return "gt"
	case RangeGte:
		return "gte"
	default:
		return "eq"
	}
}

// Must builds {"bool": {"must": clauses}}.
func Must(clauses []any) Obj {
	return boolWrap("must", clauses)
}

// Should builds {"bool": {"should": clauses}}.
func Should(clauses []any) Obj {
	return boolWrap("should", clauses)
}

// MustNot builds {"bool": {"must_not": operand}}. Unlike Must/Should, the
// operand is a single node, not an array — NOT has exactly one operand.
func MustNot(operand any) Obj {
	return boolWrap("must_not", operand)
}

func boolWrap(kind string, val any) Obj {
	return Object(Pair("bool", Object(Pair(kind, val))))
}

// FunctionScore builds {"function_score": {"query": query, "boost": boost}}.
func FunctionScore(query any, boost float64) Obj {
	return Object(Pair("function_score", Object(
		Pair("query", query),
		Pair("boost", boost),
	)))
}

// MatchNone builds the {"match_none": {}} sentinel for an empty query.
func MatchNone() Obj {
	return Object(Pair("match_none", Object()))
}
