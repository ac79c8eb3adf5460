package dependency

// Evaluate reports whether expr is satisfied by the values lookup returns.
// A nil expression or one without conditions is always satisfied.
func Evaluate(expr *Expression, lookup Lookup) bool {
	if expr == nil || len(expr.Conditions) == 0 {
		return true
	}

	if expr.Relation == RelationOr {
		for _, c := range expr.Conditions {
			if EvaluateCondition(c, lookup) {
				return true
			}
		}
		return false
	}

	for _, c := range expr.Conditions {
		if !EvaluateCondition(c, lookup) {
			return false
		}
	}
	return true
}

// EvaluateCondition checks a single condition. Conditions without a field
// are vacuously true and unknown operators compare for equality.
func EvaluateCondition(c Condition, lookup Lookup) bool {
	if c.Field == "" {
		return true
	}

	current := ""
	if lookup != nil {
		current = lookup(c.Field)
	}

	// A scalar holds one candidate, so membership doubles as equality.
	matches := c.Value.Contains(current)

	switch c.Operator {
	case OpNotEqual, OpNotIdentical, OpNotIn:
		return !matches
	default:
		return matches
	}
}
