package listing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var sampleStreets = []string{
	"Harbour Road", "Elm Street", "Kingsway", "Mill Lane", "Station Avenue", "Park Crescent",
}

// Samples generates n listings spread over both categories and three owners,
// one minute apart, newest at now.
func Samples(n int, now time.Time) []Listing {
	out := make([]Listing, n)
	for i := range out {
		offer := i%3 == 0
		regular := int64(800 + (i%7)*150)
		discounted := int64(0)
		if offer {
			discounted = regular - 100
		}
		typ := CategoryRent
		if i%2 == 1 {
			typ = CategorySale
			regular *= 250
			discounted *= 250
		}

		out[i] = Listing{
			ID:              uuid.NewString(),
			UserID:          fmt.Sprintf("demo-user-%d", i%3+1),
			Name:            fmt.Sprintf("%d bedroom home on %s", i%4+1, sampleStreets[i%len(sampleStreets)]),
			Type:            typ,
			Bedrooms:        i%4 + 1,
			Bathrooms:       i%2 + 1,
			Offer:           offer,
			Parking:         i%2 == 0,
			Furnished:       i%5 == 0,
			Location:        fmt.Sprintf("%d %s", 10+i, sampleStreets[i%len(sampleStreets)]),
			RegularPrice:    regular,
			DiscountedPrice: discounted,
			ImageURLs:       []string{fmt.Sprintf("https://images.example.com/listings/%d.jpg", i)},
			Timestamp:       now.Add(-time.Duration(i) * time.Minute).UTC(),
		}
	}
	return out
}
