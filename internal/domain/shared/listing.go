package shared

// Listing page sizes.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter pages through a seller's listing. Search is a case-insensitive
// substring match whose columns depend on the listing.
type Filter struct {
	Page     int
	PageSize int
	Search   string
}

// DefaultFilter is the first page at the default size.
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: DefaultPageSize}
}

// Limit clamps PageSize into [1, MaxPageSize]; zero means the default.
func (f Filter) Limit() int {
	if f.PageSize <= 0 {
		return DefaultPageSize
	}
	return min(f.PageSize, MaxPageSize)
}

// Offset is the number of rows before Page. Pages start at 1.
func (f Filter) Offset() int {
	return max(f.Page-1, 0) * f.Limit()
}
