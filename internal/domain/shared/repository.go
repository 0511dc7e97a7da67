package shared

// Filter carries the paging and ordering options every list query
// accepts. OrderBy is validated against a per-table whitelist in the
// persistence layer before it reaches SQL.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}
