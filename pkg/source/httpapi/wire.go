package httpapi

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/pagination"
	"github.com/google/go-querystring/query"
)

// ListingsPath is the collection endpoint.
const ListingsPath = "/v1/listings"

// ListParams are the query parameters of GET /v1/listings.
type ListParams struct {
	Field  string `url:"field,omitempty"`
	Value  string `url:"value,omitempty"`
	Sort   string `url:"sort"`
	Order  string `url:"order"`
	Limit  int    `url:"limit"`
	Cursor string `url:"cursor,omitempty"`
}

// ListResponse is the body of a successful GET /v1/listings.
type ListResponse struct {
	Items      []listing.Listing `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// EncodeQuery renders q as URL parameters.
func EncodeQuery(q pagination.Query) (url.Values, error) {
	order := "asc"
	if q.Sort.Desc {
		order = "desc"
	}
	p := ListParams{
		Field:  q.Filter.Field,
		Sort:   q.Sort.Field,
		Order:  order,
		Limit:  q.PageSize,
		Cursor: string(q.Cursor),
	}
	if !q.Filter.IsZero() {
		p.Value = listing.FormatValue(q.Filter.Value)
	}

	v, err := query.Values(p)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return v, nil
}

// DecodeQuery parses URL parameters produced by EncodeQuery. Filter values
// stay strings, which compare equal to their typed originals.
func DecodeQuery(v url.Values) (pagination.Query, error) {
	q := pagination.Query{
		Sort:   pagination.Sort{Field: v.Get("sort")},
		Cursor: pagination.Cursor(v.Get("cursor")),
	}
	if field := v.Get("field"); field != "" {
		q.Filter = pagination.Filter{Field: field, Value: v.Get("value")}
	}

	switch order := v.Get("order"); order {
	case "", "desc":
		q.Sort.Desc = true
	case "asc":
	default:
		return q, fmt.Errorf("%w: unknown order %q", pagination.ErrInvalidQuery, order)
	}

	if limit := v.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return q, fmt.Errorf("%w: limit: %v", pagination.ErrInvalidQuery, err)
		}
		q.PageSize = n
	}
	q.PageSize = pagination.NormalizePageSize(q.PageSize)

	return q, q.Validate()
}
