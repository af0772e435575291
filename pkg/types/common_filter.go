package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq       CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq    CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt       CommonFilterOperator = "lt"
	CommonFilterOperatorLte      CommonFilterOperator = "lte"
	CommonFilterOperatorGt       CommonFilterOperator = "gt"
	CommonFilterOperatorGte      CommonFilterOperator = "gte"
	CommonFilterOperatorRange    CommonFilterOperator = "range"
	CommonFilterOperatorIn       CommonFilterOperator = "in"
	CommonFilterOperatorContains CommonFilterOperator = "contains"
)

type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// ValidateFilters rejects filters on columns outside allowed. Field names end up in SQL.
func ValidateFilters(filters []*CommonFilter, allowed []string) error {
	for _, f := range filters {
		if f == nil {
			continue
		}
		if !lo.Contains(allowed, f.Field) {
			return fmt.Errorf("filter on field %q is not allowed", f.Field)
		}
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	case CommonFilterOperatorContains:
		clause.Expr{SQL: "LOWER(?) LIKE ?", Vars: []interface{}{clause.Column{Name: f.Field}, "%" + strings.ToLower(fmt.Sprint(value)) + "%"}}.Build(builder)
	default:
		return
	}
}

// Match evaluates the filter against a plain value. Used by in-memory listings.
func (f *CommonFilter) Match(v any) bool {
	if len(f.Values) == 0 {
		return true
	}
	want := fmt.Sprint(f.Values[0])
	got := fmt.Sprint(v)
	switch f.Operator {
	case CommonFilterOperatorEq:
		return got == want
	case CommonFilterOperatorNotEq:
		return got != want
	case CommonFilterOperatorIn:
		return lo.ContainsBy(f.Values, func(x any) bool { return fmt.Sprint(x) == got })
	case CommonFilterOperatorContains:
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	default:
		return true
	}
}
