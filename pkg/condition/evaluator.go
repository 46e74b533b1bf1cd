package condition

import (
	"fmt"
	"strconv"
	"strings"

	"go-letter/internal/common/models"
)

// Evaluator checks RuleConditions against a flat attribute map. It is used to
// decide whether a conditional workflow step applies to a given letter at
// instantiation time.
type Evaluator struct {
	Context map[string]interface{}
}

func NewEvaluator(ctx map[string]interface{}) *Evaluator {
	return &Evaluator{Context: ctx}
}

// Evaluate returns true when the condition holds for the evaluator's context.
// A missing field never matches, regardless of operator.
func (e *Evaluator) Evaluate(cond models.RuleCondition) (bool, error) {
	val, exists := e.Context[cond.Field]
	if !exists {
		return false, nil
	}

	switch cond.Operator {
	case "eq":
		return looseEqual(val, cond.Value), nil
	case "ne":
		return !looseEqual(val, cond.Value), nil
	case "gt", "lt", "gte", "lte":
		a, aok := toFloat(val)
		b, bok := toFloat(cond.Value)
		if !aok || !bok {
			return false, fmt.Errorf("operator %s requires numeric values", cond.Operator)
		}
		switch cond.Operator {
		case "gt":
			return a > b, nil
		case "lt":
			return a < b, nil
		case "gte":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case "in":
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("in operator requires a list value")
		}
		for _, item := range list {
			if looseEqual(val, item) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", val)),
			strings.ToLower(fmt.Sprintf("%v", cond.Value)),
		), nil
	default:
		return false, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

// looseEqual compares values through their string form so that JSON numbers
// (float64) still match integer attributes and vice versa.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
