package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/rowan/backstop/internal/api/util"
)

// datetimeFields lists columns holding datetime values whose user-supplied
// comparison operands need normalization.
var datetimeFields = map[string]bool{
	"started_at":   true,
	"completed_at": true,
	"verified_at":  true,
	"last_run_at":  true,
	"next_run_at":  true,
	"created_at":   true,
	"updated_at":   true,
}

// normalizeDateTime rewrites user-supplied datetime operands into the
// T-separated UTC form the sqlite driver stores, so lexicographic column
// comparison matches chronological order.
func normalizeDateTime(value string) string {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05")
		}
	}

	// Not parseable as a datetime; compare as-is.
	return value
}

// BuildFilterClause builds a SQL WHERE clause from a QueryFilter
func BuildFilterClause(f util.QueryFilter) (string, []interface{}) {
	value := f.Value
	if datetimeFields[f.Field] {
		if strVal, ok := value.(string); ok {
			value = normalizeDateTime(strVal)
		}
	}

	switch f.Operator {
	case util.OpEq:
		return fmt.Sprintf("%s = ?", f.Field), []interface{}{value}
	case util.OpNe:
		return fmt.Sprintf("%s != ?", f.Field), []interface{}{value}
	case util.OpGt:
		return fmt.Sprintf("%s > ?", f.Field), []interface{}{value}
	case util.OpGte:
		return fmt.Sprintf("%s >= ?", f.Field), []interface{}{value}
	case util.OpLt:
		return fmt.Sprintf("%s < ?", f.Field), []interface{}{value}
	case util.OpLte:
		return fmt.Sprintf("%s <= ?", f.Field), []interface{}{value}
	case util.OpIsNull:
		return fmt.Sprintf("%s IS NULL", f.Field), nil
	case util.OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", f.Field), nil
	case util.OpIn, util.OpNin:
		values, ok := f.Value.([]string)
		if !ok || len(values) == 0 {
			return "", nil
		}
		placeholders := make([]string, len(values))
		args := make([]interface{}, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args[i] = v
		}
		keyword := "IN"
		if f.Operator == util.OpNin {
			keyword = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", f.Field, keyword, strings.Join(placeholders, ", ")), args
	default:
		return "", nil
	}
}

// ApplyFilters appends WHERE clauses for each QueryFilter
func ApplyFilters(query string, args []interface{}, filters []util.QueryFilter) (string, []interface{}) {
	for _, f := range filters {
		clause, filterArgs := BuildFilterClause(f)
		if clause != "" {
			query += " AND " + clause
			args = append(args, filterArgs...)
		}
	}
	return query, args
}

// ApplyOrdering appends an ORDER BY clause, falling back to defaultOrder
func ApplyOrdering(query string, orders []util.OrderClause, defaultOrder string) string {
	if len(orders) == 0 {
		return query + " ORDER BY " + defaultOrder
	}
	clauses := make([]string, 0, len(orders))
	for _, o := range orders {
		direction := "ASC"
		if o.Direction == util.OrderDesc {
			direction = "DESC"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s", o.Field, direction))
	}
	return query + " ORDER BY " + strings.Join(clauses, ", ")
}

// ApplyPagination appends LIMIT/OFFSET from page/perPage
func ApplyPagination(query string, args []interface{}, page, perPage int) (string, []interface{}) {
	if perPage > 0 {
		query += " LIMIT ?"
		args = append(args, perPage)

		if page > 1 {
			query += " OFFSET ?"
			args = append(args, (page-1)*perPage)
		}
	}
	return query, args
}
