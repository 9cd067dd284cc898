package rules

import (
	"fmt"
	"strconv"

	"botflow/models"
)

// Validate checks a condition tree before the tick loop runs. A malformed
// tree (empty group, unknown field or operator, type-mismatched comparison)
// is a fatal configuration error: masking it would make a misconfigured bot
// silently inert.
func Validate(node *models.ConditionNode) error {
	if node == nil {
		return fmt.Errorf("empty rule set")
	}
	return validateNode(node)
}

func validateNode(node *models.ConditionNode) error {
	if node.IsGroup() {
		if node.Field != "" || node.Operator != "" || node.Value != "" {
			return fmt.Errorf("condition node is both group and leaf")
		}
		if node.Combinator != models.CombinatorAnd && node.Combinator != models.CombinatorOr {
			return fmt.Errorf("unknown combinator %q", node.Combinator)
		}
		if len(node.Children) == 0 {
			return fmt.Errorf("%s group has no children", node.Combinator)
		}
		for i := range node.Children {
			if err := validateNode(&node.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}

	return validateLeaf(node)
}

func validateLeaf(node *models.ConditionNode) error {
	if node.Field == "" {
		return fmt.Errorf("condition leaf missing field")
	}

	if _, ok := numericFields[node.Field]; ok {
		switch node.Operator {
		case models.OpEq, models.OpNeq, models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		default:
			return fmt.Errorf("unknown operator %q for field %q", node.Operator, node.Field)
		}
		if _, err := strconv.ParseFloat(node.Value, 64); err != nil {
			return fmt.Errorf("field %q requires a numeric value, got %q", node.Field, node.Value)
		}
		return nil
	}

	if _, ok := enumFields[node.Field]; ok {
		if node.Operator != models.OpEq && node.Operator != models.OpNeq {
			return fmt.Errorf("enum field %q supports only equality operators, got %q", node.Field, node.Operator)
		}
		if !enumValues[node.Field][node.Value] {
			return fmt.Errorf("invalid value %q for enum field %q", node.Value, node.Field)
		}
		return nil
	}

	return fmt.Errorf("unknown rule field %q", node.Field)
}
