// Package listing defines the marketplace listing record transported by loaders.
package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/listings-client/pkg/pagination"
)

// Categories a listing can be published under.
const (
	CategoryRent = "rent"
	CategorySale = "sale"
)

// Filterable field names.
const (
	FieldType      = "type"
	FieldOffer     = "offer"
	FieldUserID    = "userId"
	FieldTimestamp = "timestamp"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Listing is a property offered for rent or sale.
type Listing struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Bedrooms        int       `json:"bedrooms"`
	Bathrooms       int       `json:"bathrooms"`
	Offer           bool      `json:"offer"`
	Parking         bool      `json:"parking"`
	Furnished       bool      `json:"furnished"`
	Location        string    `json:"location"`
	RegularPrice    int64     `json:"regularPrice"`
	DiscountedPrice int64     `json:"discountedPrice"`
	Geolocation     GeoPoint  `json:"geolocation"`
	ImageURLs       []string  `json:"imageUrls"`
	Timestamp       time.Time `json:"timestamp"`
}

// Key returns the listing identity. It is the key function of listing loaders.
func Key(l Listing) string {
	return l.ID
}

// Price returns the price a buyer pays: the discounted price for offers.
func (l Listing) Price() int64 {
	if l.Offer {
		return l.DiscountedPrice
	}
	return l.RegularPrice
}

// Position returns the cursor anchor of the listing.
func (l Listing) Position() pagination.Position {
	return pagination.Position{Timestamp: l.Timestamp, ID: l.ID}
}

// Field returns the value of a filterable field.
func (l Listing) Field(name string) (any, bool) {
	switch name {
	case FieldType:
		return l.Type, true
	case FieldOffer:
		return l.Offer, true
	case FieldUserID:
		return l.UserID, true
	case FieldTimestamp:
		return l.Timestamp, true
	default:
		return nil, false
	}
}

// Matches reports whether l satisfies f. Values are compared by their string form
// so "true" matches a boolean field and filters decoded from query strings work.
func (l Listing) Matches(f pagination.Filter) bool {
	if f.IsZero() {
		return true
	}
	v, ok := l.Field(f.Field)
	if !ok {
		return false
	}
	return FormatValue(v) == FormatValue(f.Value)
}

// FormatValue renders a filter value canonically.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// ValidCategory reports whether c names a known category.
func ValidCategory(c string) bool {
	switch strings.ToLower(c) {
	case CategoryRent, CategorySale:
		return true
	default:
		return false
	}
}
