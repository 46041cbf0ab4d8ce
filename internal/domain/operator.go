package domain

// Operator is a comparison applied by a filter clause.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorBetween     Operator = "between"
	OperatorIsEmpty     Operator = "is_empty"
	OperatorIsNotEmpty  Operator = "is_not_empty"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
)

// Arity describes the value shape an operator expects.
type Arity string

const (
	// ArityNone operators take no value.
	ArityNone Arity = "none"
	// AritySingle operators take one scalar.
	AritySingle Arity = "single"
	// ArityRange operators take exactly two bounds.
	ArityRange Arity = "range"
	// AritySet operators take one or more members.
	AritySet Arity = "set"
)

// OperatorDefinition is the static description of an operator.
type OperatorDefinition struct {
	Operator Operator `json:"operator"`
	Label    string   `json:"label"`
	Arity    Arity    `json:"arity"`
}

var operatorDefinitions = map[Operator]OperatorDefinition{
	OperatorEquals:      {Operator: OperatorEquals, Label: "is", Arity: AritySingle},
	OperatorNotEquals:   {Operator: OperatorNotEquals, Label: "is not", Arity: AritySingle},
	OperatorContains:    {Operator: OperatorContains, Label: "contains", Arity: AritySingle},
	OperatorNotContains: {Operator: OperatorNotContains, Label: "does not contain", Arity: AritySingle},
	OperatorGreaterThan: {Operator: OperatorGreaterThan, Label: "greater than", Arity: AritySingle},
	OperatorLessThan:    {Operator: OperatorLessThan, Label: "less than", Arity: AritySingle},
	OperatorBetween:     {Operator: OperatorBetween, Label: "between", Arity: ArityRange},
	OperatorIsEmpty:     {Operator: OperatorIsEmpty, Label: "is empty", Arity: ArityNone},
	OperatorIsNotEmpty:  {Operator: OperatorIsNotEmpty, Label: "is not empty", Arity: ArityNone},
	OperatorIn:          {Operator: OperatorIn, Label: "is any of", Arity: AritySet},
	OperatorNotIn:       {Operator: OperatorNotIn, Label: "is none of", Arity: AritySet},
}

// Definition returns the static definition of op.
func (op Operator) Definition() (OperatorDefinition, bool) {
	def, ok := operatorDefinitions[op]
	return def, ok
}

// IsValid reports whether op is a known operator.
func (op Operator) IsValid() bool {
	_, ok := operatorDefinitions[op]
	return ok
}
