// Package browse wires the marketplace views (category, offers, owner's own
// listings) onto the generic loader.
package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/listings-client/pkg/listing"
	"github.com/Sternrassler/listings-client/pkg/loader"
	"github.com/Sternrassler/listings-client/pkg/pagination"
)

// Page sizes per view.
const (
	CategoryPageSize = 10
	OffersPageSize   = 10
	OwnerPageSize    = 5
)

// Scope names, used as loader names.
const (
	ScopeCategory = "category"
	ScopeOffers   = "offers"
	ScopeOwner    = "owner"
)

// Options carries the optional loader hooks shared by every view.
type Options struct {
	OnChange func(loader.Snapshot[listing.Listing])
	OnError  func(error)
	Context  context.Context
}

// CategoryQuery lists one category, newest first.
func CategoryQuery(category string) pagination.Query {
	return pagination.Query{
		Filter:   pagination.Filter{Field: listing.FieldType, Value: strings.ToLower(category)},
		Sort:     pagination.SortByTimestampDesc,
		PageSize: CategoryPageSize,
	}
}

// OffersQuery lists discounted listings, newest first.
func OffersQuery() pagination.Query {
	return pagination.Query{
		Filter:   pagination.Filter{Field: listing.FieldOffer, Value: true},
		Sort:     pagination.SortByTimestampDesc,
		PageSize: OffersPageSize,
	}
}

// OwnerQuery lists the listings published by one user, newest first.
func OwnerQuery(userID string) pagination.Query {
	return pagination.Query{
		Filter:   pagination.Filter{Field: listing.FieldUserID, Value: userID},
		Sort:     pagination.SortByTimestampDesc,
		PageSize: OwnerPageSize,
	}
}

// NewCategory creates the loader behind a category page.
func NewCategory(src pagination.Source[listing.Listing], category string, opts Options) (*loader.Loader[listing.Listing], error) {
	if !listing.ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return newLoader(ScopeCategory, CategoryQuery(category), src, opts)
}

// NewOffers creates the loader behind the offers page.
func NewOffers(src pagination.Source[listing.Listing], opts Options) (*loader.Loader[listing.Listing], error) {
	return newLoader(ScopeOffers, OffersQuery(), src, opts)
}

// NewOwner creates the loader behind a user's profile listings.
func NewOwner(src pagination.Source[listing.Listing], userID string, opts Options) (*loader.Loader[listing.Listing], error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return newLoader(ScopeOwner, OwnerQuery(userID), src, opts)
}

func newLoader(name string, q pagination.Query, src pagination.Source[listing.Listing], opts Options) (*loader.Loader[listing.Listing], error) {
	return loader.New(loader.Config[listing.Listing]{
		Name:     name,
		Query:    q,
		Source:   src,
		Key:      listing.Key,
		Context:  opts.Context,
		OnChange: opts.OnChange,
		OnError:  opts.OnError,
	})
}

// Deleter removes a listing from the backing store.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// DeleteOwned deletes a listing remotely, then splices it out of the loaded
// list without refetching. The local list is untouched when the remote delete fails.
func DeleteOwned(ctx context.Context, d Deleter, l *loader.Loader[listing.Listing], id string) error {
	if err := d.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	l.RemoveByID(id)
	return nil
}
