package adrive

import (
	"context"
	"fmt"
	"iter"
)

// page is the envelope every marker-paginated list endpoint returns.
type page[T any] struct {
	Items      []T    `json:"items"`
	NextMarker string `json:"next_marker"`
}

// pageFetcher fetches the page that starts at marker ("" for the first).
type pageFetcher[T any] func(ctx context.Context, marker string) (*page[T], error)

// paginate walks pages from fetch until next_marker is empty, yielding each
// item. Breaking out of the range loop stops further fetches. The first
// error is yielded once and ends the sequence.
func paginate[T any](ctx context.Context, start string, fetch pageFetcher[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		marker := start
		seen := map[string]bool{}
		if start != "" {
			seen[start] = true
		}

		for {
			p, err := fetch(ctx, marker)
			if err != nil {
				yield(zero, err)

				return
			}

			for _, item := range p.Items {
				if !yield(item, nil) {
					return
				}
			}

			if p.NextMarker == "" {
				return
			}

			if p.NextMarker == marker || seen[p.NextMarker] {
				yield(zero, fmt.Errorf("%w: %q", ErrPaginationLoop, p.NextMarker))

				return
			}

			seen[p.NextMarker] = true
			marker = p.NextMarker
		}
	}
}

// collect drains seq into a slice, stopping at the first error.
func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T

	for item, err := range seq {
		if err != nil {
			return nil, err
		}

		out = append(out, item)
	}

	return out, nil
}
