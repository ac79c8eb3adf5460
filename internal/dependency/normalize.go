package dependency

import (
	"strings"

	"github.com/jellydator/ttlcache/v3"
)

// Shape identifies the layout of a raw dependency declaration
type Shape int

const (
	// ShapeNone is an absent or empty declaration
	ShapeNone Shape = iota
	// ShapeCanonical is an *Expression or Expression value
	ShapeCanonical
	// ShapeObject is a map carrying a "conditions" key and an optional "relation"
	ShapeObject
	// ShapeTripleList is a list of conditions, each a triple or a keyed map
	ShapeTripleList
	// ShapeTriple is a single [field, operator, value] triple or keyed map
	ShapeTriple
	// ShapeUnknown is anything else; it normalizes to no dependency
	ShapeUnknown
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeCanonical:
		return "canonical"
	case ShapeObject:
		return "object"
	case ShapeTripleList:
		return "triple-list"
	case ShapeTriple:
		return "triple"
	default:
		return "unknown"
	}
}

// Classify reports which declaration shape raw uses
func Classify(raw any) Shape {
	switch val := raw.(type) {
	case nil:
		return ShapeNone
	case *Expression:
		if val == nil {
			return ShapeNone
		}
		return ShapeCanonical
	case Expression:
		return ShapeCanonical
	case string:
		if val == "" {
			return ShapeNone
		}
		return ShapeUnknown
	case map[string]any:
		if len(val) == 0 {
			return ShapeNone
		}
		if _, ok := val["conditions"]; ok {
			return ShapeObject
		}
		return ShapeTriple
	case map[string]string:
		if len(val) == 0 {
			return ShapeNone
		}
		return ShapeTriple
	case Condition:
		return ShapeTriple
	case []Condition:
		if len(val) == 0 {
			return ShapeNone
		}
		return ShapeTripleList
	}

	items, ok := asList(raw)
	if !ok {
		return ShapeUnknown
	}
	if len(items) == 0 {
		return ShapeNone
	}
	if isComposite(items[0]) {
		return ShapeTripleList
	}
	return ShapeTriple
}

// Normalize converts any supported declaration shape into the canonical
// expression. It returns nil when nothing with a field name remains.
// Normalize(Normalize(x)) equals Normalize(x).
func Normalize(raw any) *Expression {
	var (
		relation   = RelationAnd
		conditions []any
	)

	switch Classify(raw) {
	case ShapeCanonical:
		expr, ok := raw.(*Expression)
		if !ok {
			v := raw.(Expression)
			expr = &v
		}
		relation = parseRelation(string(expr.Relation))
		for _, c := range expr.Conditions {
			conditions = append(conditions, c)
		}

	case ShapeObject:
		m := raw.(map[string]any)
		if r, ok := m["relation"].(string); ok {
			relation = parseRelation(r)
		}
		list, ok := asList(m["conditions"])
		if ok && (len(list) == 0 || isComposite(list[0])) {
			conditions = list
		} else {
			conditions = []any{m["conditions"]}
		}

	case ShapeTripleList:
		conditions, _ = asList(raw)

	case ShapeTriple:
		conditions = []any{raw}

	default:
		return nil
	}

	expr := &Expression{Relation: relation}
	for _, rc := range conditions {
		if c, ok := parseCondition(rc); ok {
			expr.Conditions = append(expr.Conditions, c)
		}
	}

	if len(expr.Conditions) == 0 {
		return nil
	}
	return expr
}

// parseRelation upper-cases r and falls back to AND for anything but OR
func parseRelation(r string) Relation {
	if Relation(strings.ToUpper(strings.TrimSpace(r))) == RelationOr {
		return RelationOr
	}
	return RelationAnd
}

// parseCondition reads a triple or keyed map. Conditions without a field
// are dropped.
func parseCondition(raw any) (Condition, bool) {
	var (
		field    any
		operator any
		value    any
	)

	switch val := raw.(type) {
	case Condition:
		field, operator, value = val.Field, string(val.Operator), val.Value
	case *Condition:
		if val == nil {
			return Condition{}, false
		}
		field, operator, value = val.Field, string(val.Operator), val.Value
	case map[string]any:
		field = firstKey(val, "field", "id", "0")
		operator = firstKey(val, "operator", "1")
		value = firstKey(val, "value", "2")
	case map[string]string:
		generic := make(map[string]any, len(val))
		for k, v := range val {
			generic[k] = v
		}
		return parseCondition(generic)
	default:
		items, ok := asList(raw)
		if !ok {
			return Condition{}, false
		}
		if len(items) > 0 {
			field = items[0]
		}
		if len(items) > 1 {
			operator = items[1]
		}
		if len(items) > 2 {
			value = items[2]
		}
	}

	name := stringify(field)
	if name == "" {
		return Condition{}, false
	}

	op := Operator(stringify(operator))
	if op == "" {
		op = OpEqual
	}

	return Condition{
		Field:    name,
		Operator: op,
		Value:    coerceValue(value),
	}, true
}

func firstKey(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// asList unwraps the slice types a declaration may arrive as
func asList(raw any) ([]any, bool) {
	switch val := raw.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case [][]any:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case [][]string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []Condition:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// isComposite reports whether a list item is itself a condition rather
// than a triple element
func isComposite(item any) bool {
	switch item.(type) {
	case map[string]any, map[string]string, Condition, *Condition:
		return true
	}
	_, ok := asList(item)
	return ok
}

// Normalizer caches canonical expressions per field id
type Normalizer struct {
	cache *ttlcache.Cache[string, *Expression]
}

// NewNormalizer creates an empty normalizer cache
func NewNormalizer() *Normalizer {
	return &Normalizer{
		cache: ttlcache.New[string, *Expression](
			ttlcache.WithDisableTouchOnHit[string, *Expression](),
		),
	}
}

// For returns the canonical expression of fieldID, normalizing raw on the
// first request only.
func (n *Normalizer) For(fieldID string, raw any) *Expression {
	if item := n.cache.Get(fieldID); item != nil {
		return item.Value()
	}
	expr := Normalize(raw)
	n.cache.Set(fieldID, expr, ttlcache.NoTTL)
	return expr
}

// Reset drops every cached expression
func (n *Normalizer) Reset() {
	n.cache.DeleteAll()
}

// Len returns the number of cached expressions
func (n *Normalizer) Len() int {
	return n.cache.Len()
}
