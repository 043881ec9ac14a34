package util

import (
	"fmt"
	"strings"
)

// QueryOperator represents a filter operator
type QueryOperator string

const (
	OpEq        QueryOperator = "eq"
	OpNe        QueryOperator = "ne"
	OpGt        QueryOperator = "gt"
	OpGte       QueryOperator = "gte"
	OpLt        QueryOperator = "lt"
	OpLte       QueryOperator = "lte"
	OpIn        QueryOperator = "in"
	OpNin       QueryOperator = "nin"
	OpIsNull    QueryOperator = "isnull"
	OpIsNotNull QueryOperator = "isnotnull"
)

// QueryFilter represents a single filter condition
type QueryFilter struct {
	Field    string
	Operator QueryOperator
	Value    interface{} // string, or []string for in/nin
}

// OrderDirection represents sort direction
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// OrderClause represents a single order by clause
type OrderClause struct {
	Field     string
	Direction OrderDirection
}

var validOperators = map[string]QueryOperator{
	"eq": OpEq, "ne": OpNe,
	"gt": OpGt, "gte": OpGte, "lt": OpLt, "lte": OpLte,
	"in": OpIn, "nin": OpNin,
	"isnull": OpIsNull, "isnotnull": OpIsNotNull,
}

// ParseQueryString parses the query parameter into filter conditions.
// Accepted forms, comma separated:
//   - field|value (equality)
//   - field|isnull, field|isnotnull
//   - field|operator|value
func ParseQueryString(queryStr string) ([]QueryFilter, error) {
	if queryStr == "" {
		return nil, nil
	}

	var filters []QueryFilter
	for _, pair := range strings.Split(queryStr, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, "|")
		switch len(parts) {
		case 2:
			op := strings.ToLower(parts[1])
			if op == "isnull" || op == "isnotnull" {
				filters = append(filters, QueryFilter{Field: parts[0], Operator: QueryOperator(op)})
			} else {
				filters = append(filters, QueryFilter{Field: parts[0], Operator: OpEq, Value: parts[1]})
			}

		case 3:
			op, valid := validOperators[strings.ToLower(parts[1])]
			if !valid {
				return nil, fmt.Errorf("invalid operator: %s", parts[1])
			}
			var value interface{}
			if op == OpIn || op == OpNin {
				value = strings.Split(parts[2], ",")
			} else {
				value = parts[2]
			}
			filters = append(filters, QueryFilter{Field: parts[0], Operator: op, Value: value})

		default:
			return nil, fmt.Errorf("invalid query format: %s (expected field|value or field|operator|value)", pair)
		}
	}

	return filters, nil
}

// ParseOrderString parses the order parameter. Format: field|direction,
// comma separated.
func ParseOrderString(orderStr string) ([]OrderClause, error) {
	if orderStr == "" {
		return nil, nil
	}

	var orders []OrderClause
	for _, pair := range strings.Split(orderStr, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, "|")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid order format: %s (expected field|direction)", pair)
		}

		direction := strings.ToLower(parts[1])
		if direction != "asc" && direction != "desc" {
			return nil, fmt.Errorf("invalid order direction: %s (expected asc or desc)", direction)
		}

		orders = append(orders, OrderClause{Field: parts[0], Direction: OrderDirection(direction)})
	}

	return orders, nil
}

// ValidateFilterFields validates that all filter fields are in the allowed set
func ValidateFilterFields(filters []QueryFilter, allowedFields []string) error {
	allowed := fieldSet(allowedFields)
	for _, f := range filters {
		if !allowed[f.Field] {
			return fmt.Errorf("invalid query field: %s (valid fields: %s)", f.Field, strings.Join(allowedFields, ", "))
		}
	}
	return nil
}

// ValidateOrderFields validates that all order fields are in the allowed set
func ValidateOrderFields(orders []OrderClause, allowedFields []string) error {
	allowed := fieldSet(allowedFields)
	for _, o := range orders {
		if !allowed[o.Field] {
			return fmt.Errorf("invalid order field: %s (valid fields: %s)", o.Field, strings.Join(allowedFields, ", "))
		}
	}
	return nil
}

func fieldSet(fields []string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}
