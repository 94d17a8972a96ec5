package pagination

import "context"

// Page is one slice of an ordered collection.
type Page[T any] struct {
	Items []T

	// Next continues after the last item of this page.
	// It is empty when the page is empty.
	Next Cursor
}

// Empty reports whether the page carries no items.
func (p Page[T]) Empty() bool {
	return len(p.Items) == 0
}

// Short reports whether the page holds fewer items than requested, which
// means the source has nothing past it.
func (p Page[T]) Short(pageSize int) bool {
	return len(p.Items) < pageSize
}

// Source answers page queries against a remote collection.
type Source[T any] interface {
	// FetchPage returns the page described by q. Implementations reject a
	// cursor that does not belong to q.
	FetchPage(ctx context.Context, q Query) (Page[T], error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context, q Query) (Page[T], error)

// FetchPage calls f.
func (f SourceFunc[T]) FetchPage(ctx context.Context, q Query) (Page[T], error) {
	return f(ctx, q)
}
