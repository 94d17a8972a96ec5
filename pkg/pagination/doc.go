// Package pagination describes cursor-based page requests against an ordered
// remote collection.
//
// A Query carries the fixed filter, sort and page size of one browsing scope
// plus the continuation Cursor returned by the previous page. Sources answer
// a Query with a Page; an empty page or a page shorter than the requested size
// means the collection has no more records past that point.
//
// Example usage:
//
//	q := pagination.Query{
//		Filter:   pagination.Filter{Field: "type", Value: "rent"},
//		Sort:     pagination.SortByTimestampDesc,
//		PageSize: 10,
//	}
//	page, err := src.FetchPage(ctx, q)
//	if err != nil {
//		return err
//	}
//	next := q.WithCursor(page.Next)
//
// Cursors are bound to the filter+sort combination that produced them.
// DecodeCursor rejects a cursor presented with a different query, so a source
// never resumes one scope from another scope's position.
package pagination
