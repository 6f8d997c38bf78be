package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageSize is the number of items a list call returns for a requested limit.
func PageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
