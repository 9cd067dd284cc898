package models

// Combinator joins the children of a condition group.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Operator compares a context field against a leaf value. Numeric fields
// accept the full set; enum fields (macd_signal, bb_position) accept only
// equality operators.
type Operator string

const (
	OpEq  Operator = "="
	OpNeq Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

// ConditionNode is one node of a bot's rule tree. A node is either a group
// (Combinator set, Children non-empty) or a leaf (Field/Operator/Value set);
// it is never both. Groups may nest arbitrarily.
type ConditionNode struct {
	Combinator Combinator      `yaml:"combinator,omitempty" json:"combinator,omitempty"`
	Children   []ConditionNode `yaml:"children,omitempty" json:"children,omitempty"`

	Field    string   `yaml:"field,omitempty" json:"field,omitempty"`
	Operator Operator `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    string   `yaml:"value,omitempty" json:"value,omitempty"`
}

// IsGroup reports whether the node is a combinator group.
func (n *ConditionNode) IsGroup() bool {
	return n.Combinator != ""
}
