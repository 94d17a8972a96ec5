package pagination

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog/log"
)

// Walk returns an iterator over every item of the collection described by q,
// fetching one page at a time. Iteration stops after an empty or short page.
// A fetch error is yielded once and ends the iteration.
func Walk[T any](ctx context.Context, src Source[T], q Query) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		start := time.Now()
		pages, items := 0, 0

		for {
			if err := ctx.Err(); err != nil {
				yield(*new(T), err)
				return
			}

			page, err := src.FetchPage(ctx, q)
			if err != nil {
				yield(*new(T), fmt.Errorf("fetch page %d: %w", pages+1, err))
				return
			}
			pages++

			for _, item := range page.Items {
				items++
				if !yield(item, nil) {
					return
				}
			}

			if page.Empty() || page.Short(q.PageSize) || page.Next == "" {
				log.Debug().
					Str("query", q.Fingerprint()).
					Int("pages", pages).
					Int("items", items).
					Dur("duration", time.Since(start)).
					Msg("Walk complete")
				return
			}
			q = q.WithCursor(page.Next)
		}
	}
}
