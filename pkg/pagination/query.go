package pagination

import (
	"errors"
	"fmt"
)

// Page size bounds applied by NormalizePageSize.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	// ErrInvalidQuery is returned when a query cannot be sent to a source.
	ErrInvalidQuery = errors.New("invalid page query")

	// ErrUnsupportedSort is returned by sources that cannot order by the requested key.
	ErrUnsupportedSort = errors.New("unsupported sort")
)

// Filter is an equality predicate on a single item field.
// The zero value matches every item.
type Filter struct {
	Field string
	Value any
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Field == ""
}

// String renders the filter as field==value.
func (f Filter) String() string {
	if f.IsZero() {
		return "*"
	}
	return fmt.Sprintf("%s==%v", f.Field, f.Value)
}

// Sort names the ordering key of a collection.
type Sort struct {
	Field string
	Desc  bool
}

// SortByTimestampDesc orders newest first.
var SortByTimestampDesc = Sort{Field: "timestamp", Desc: true}

// String renders the sort as field:asc or field:desc.
func (s Sort) String() string {
	if s.Desc {
		return s.Field + ":desc"
	}
	return s.Field + ":asc"
}

// Query describes one page request.
type Query struct {
	Filter   Filter
	Sort     Sort
	PageSize int

	// Cursor is empty for the first page.
	Cursor Cursor
}

// Fingerprint identifies the filter+sort combination of the query.
// Two queries with the same fingerprint may share cursors.
func (q Query) Fingerprint() string {
	return q.Filter.String() + "|" + q.Sort.String()
}

// WithCursor returns a copy of q continuing after c.
func (q Query) WithCursor(c Cursor) Query {
	q.Cursor = c
	return q
}

// First reports whether the query asks for the first page.
func (q Query) First() bool {
	return q.Cursor == ""
}

// Validate checks that a source can execute the query.
func (q Query) Validate() error {
	if q.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", ErrInvalidQuery, q.PageSize)
	}
	if q.Sort.Field == "" {
		return fmt.Errorf("%w: sort field is required", ErrInvalidQuery)
	}
	return nil
}

// NormalizePageSize clamps size to [1, MaxPageSize], substituting
// DefaultPageSize for non-positive values.
func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
