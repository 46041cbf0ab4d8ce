package registry

import "github.com/rpattn/engcrm/internal/domain"

var operatorsByType = map[domain.FieldType][]domain.Operator{
	domain.FieldTypeText: {
		domain.OperatorEquals, domain.OperatorNotEquals,
		domain.OperatorContains, domain.OperatorNotContains,
		domain.OperatorIn, domain.OperatorNotIn,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
	domain.FieldTypeNumber: {
		domain.OperatorEquals, domain.OperatorNotEquals,
		domain.OperatorGreaterThan, domain.OperatorLessThan, domain.OperatorBetween,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
	domain.FieldTypeDate: {
		domain.OperatorEquals,
		domain.OperatorGreaterThan, domain.OperatorLessThan, domain.OperatorBetween,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
	domain.FieldTypeEnum: {
		domain.OperatorEquals, domain.OperatorNotEquals,
		domain.OperatorIn, domain.OperatorNotIn,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
	domain.FieldTypeBoolean: {
		domain.OperatorEquals, domain.OperatorNotEquals,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
	domain.FieldTypeTags: {
		domain.OperatorContains, domain.OperatorNotContains,
		domain.OperatorIn, domain.OperatorNotIn,
		domain.OperatorIsEmpty, domain.OperatorIsNotEmpty,
	},
}

// OperatorsFor returns the operators legal for fieldType. Unknown field types
// have no operators.
func OperatorsFor(fieldType domain.FieldType) []domain.OperatorDefinition {
	ops := operatorsByType[fieldType]
	defs := make([]domain.OperatorDefinition, 0, len(ops))
	for _, op := range ops {
		def, _ := op.Definition()
		defs = append(defs, def)
	}
	return defs
}

// Allows reports whether op may be applied to a field of fieldType.
func Allows(fieldType domain.FieldType, op domain.Operator) (domain.OperatorDefinition, bool) {
	for _, candidate := range operatorsByType[fieldType] {
		if candidate == op {
			return op.Definition()
		}
	}
	return domain.OperatorDefinition{}, false
}
