package util

// ListFilter contains common filtering/pagination options for list endpoints
type ListFilter struct {
	// Filters parsed from the query parameter
	Filters []QueryFilter
	// Order by clauses parsed from the order parameter
	Order []OrderClause
	// Pagination
	Page    int
	PerPage int
}
