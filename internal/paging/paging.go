// Package paging drives offset-paginated listings to completion.
//
// A listing is described by a [PageFunc]; [Pages] walks it from page zero
// until a page arrives without a continuation token. Nothing here
// deduplicates items.
package paging

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/desertthunder/radar/internal/models"
)

// ErrInvalidPageSize is returned for a page size below one.
var ErrInvalidPageSize = errors.New("page size must be positive")

// PageFunc fetches the page at pageIndex of a listing split into pages of pageSize.
type PageFunc[T any] func(ctx context.Context, pageSize, pageIndex int) (models.Page[T], error)

// Offset returns the item offset of page pageIndex.
func Offset(pageSize, pageIndex int) int {
	return pageSize * pageIndex
}

// Pages returns a lazy sequence over every page of the listing.
//
// Each range over the sequence starts again at page zero. A fetch error is
// yielded once, wrapped with the failing page index, and ends the sequence.
func Pages[T any](ctx context.Context, fetch PageFunc[T], pageSize int) iter.Seq2[models.Page[T], error] {
	return func(yield func(models.Page[T], error) bool) {
		if pageSize < 1 {
			yield(models.Page[T]{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize))
			return
		}

		for index := 0; ; index++ {
			if err := ctx.Err(); err != nil {
				yield(models.Page[T]{Index: index}, err)
				return
			}

			page, err := fetch(ctx, pageSize, index)
			if err != nil {
				yield(models.Page[T]{Index: index}, fmt.Errorf("failed to fetch page %d: %w", index, err))
				return
			}
			page.Index = index

			if !yield(page, nil) || !page.HasNext() {
				return
			}
		}
	}
}

// Items flattens [Pages] into a sequence of item slots. Nil slots are passed through.
func Items[T any](ctx context.Context, fetch PageFunc[T], pageSize int) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for page, err := range Pages(ctx, fetch, pageSize) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect gathers every item slot of the listing, or returns the first error and no items.
func Collect[T any](ctx context.Context, fetch PageFunc[T], pageSize int) ([]*T, error) {
	var items []*T
	for item, err := range Items(ctx, fetch, pageSize) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
