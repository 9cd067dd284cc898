package rules

import (
	"fmt"
	"strconv"

	"botflow/models"
)

// Evaluate walks a condition tree against one tick. Groups short-circuit;
// leaves compare the mapped field against the leaf value. Trees are expected
// to have passed Validate before the tick loop starts, so any error here
// indicates a tree that bypassed validation and is surfaced rather than
// treated as false.
func Evaluate(node *models.ConditionNode, tick models.PriceTick) (bool, error) {
	if node == nil {
		return false, fmt.Errorf("nil condition node")
	}

	if node.IsGroup() {
		return evaluateGroup(node, tick)
	}
	return evaluateLeaf(node, tick)
}

func evaluateGroup(node *models.ConditionNode, tick models.PriceTick) (bool, error) {
	if len(node.Children) == 0 {
		return false, fmt.Errorf("empty %s group", node.Combinator)
	}

	switch node.Combinator {
	case models.CombinatorAnd:
		for i := range node.Children {
			ok, err := Evaluate(&node.Children[i], tick)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case models.CombinatorOr:
		for i := range node.Children {
			ok, err := Evaluate(&node.Children[i], tick)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown combinator %q", node.Combinator)
	}
}

func evaluateLeaf(node *models.ConditionNode, tick models.PriceTick) (bool, error) {
	if get, ok := numericFields[node.Field]; ok {
		want, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return false, fmt.Errorf("non-numeric value %q for field %q", node.Value, node.Field)
		}
		return compareNumeric(get(tick), node.Operator, want)
	}

	if get, ok := enumFields[node.Field]; ok {
		switch node.Operator {
		case models.OpEq:
			return get(tick) == node.Value, nil
		case models.OpNeq:
			return get(tick) != node.Value, nil
		default:
			return false, fmt.Errorf("operator %q not supported for enum field %q", node.Operator, node.Field)
		}
	}

	return false, fmt.Errorf("unknown rule field %q", node.Field)
}

func compareNumeric(have float64, op models.Operator, want float64) (bool, error) {
	switch op {
	case models.OpEq:
		return have == want, nil
	case models.OpNeq:
		return have != want, nil
	case models.OpGt:
		return have > want, nil
	case models.OpGte:
		return have >= want, nil
	case models.OpLt:
		return have < want, nil
	case models.OpLte:
		return have <= want, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}
