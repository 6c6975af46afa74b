// Package paging implements stable cursor pagination over an ordered,
// concurrently growing collection. Pages are windows bounded by a composite
// (timestamp, id) key rather than a row offset, so traversal never skips or
// repeats items when new rows are inserted elsewhere in the order.
package paging

import (
	"context"
	"fmt"

	"github.com/samber/lo"
)

const (
	// MaxPageSize caps the number of items a single page may return.
	MaxPageSize = 100

	// DefaultPageSize is used by callers that do not ask for a size.
	DefaultPageSize = 20
)

// Direction selects which side of the cursor boundary a fetch walks.
type Direction int

const (
	// Forward walks toward older articles (the natural reading order).
	Forward Direction = iota
	// Backward walks toward newer articles. Requires a cursor.
	Backward
)

// ParseDirection maps the query-parameter form to a Direction. The empty
// value means forward, matching a first-page request.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "next":
		return Forward, nil
	case "prev":
		return Backward, nil
	default:
		return 0, fmt.Errorf("%w: bad direction: %s", ErrInvalidRequest, s)
	}
}

// Request describes one page fetch. Cursor is the raw token from the
// previous response, empty for the first page.
type Request struct {
	Cursor    string
	Direction Direction
	Limit     int
}

// Page is a bounded window of items in newest-first order plus the cursors
// for its neighboring windows. Next and Prev are nil when the page is empty.
type Page[T any] struct {
	Items   []T
	HasNext bool
	HasPrev bool
	Next    *Cursor
	Prev    *Cursor
}

// Window is the single range query a page fetch issues against storage:
// "items with key strictly beyond Boundary, Limit rows". Limit already
// includes the lookahead row.
type Window struct {
	// Boundary is exclusive; nil means paginate from the newest item.
	// Exclusive comparison also covers a deleted boundary article: the scan
	// simply resumes at its nearest remaining neighbor.
	Boundary *Key

	// Older selects keys strictly less than the boundary, scanned
	// newest-first. When false the scan covers keys strictly greater,
	// oldest-first, so the rows nearest the boundary come back first.
	Older bool

	Limit int
}

// WindowFunc executes a Window against storage. Errors are returned to the
// caller untouched.
type WindowFunc[T any] func(ctx context.Context, w Window) ([]T, error)

// FetchPage returns one page of the scope's items. It validates the request,
// resolves the cursor to a boundary key, issues exactly one limit+1 range
// query, and derives the adjacency flags and cursors from the rows actually
// returned. The call is stateless and has no side effects, so callers may
// retry it as is.
func FetchPage[T any](ctx context.Context, scope string, req Request, keyOf func(T) Key, query WindowFunc[T]) (*Page[T], error) {
	if req.Limit <= 0 || req.Limit > MaxPageSize {
		return nil, fmt.Errorf("%w: limit must be in 1..%d, got %d", ErrInvalidRequest, MaxPageSize, req.Limit)
	}

	var boundary *Key
	switch {
	case req.Cursor != "":
		cursor, err := DecodeCursor(req.Cursor, scope)
		if err != nil {
			return nil, err
		}
		boundary = &cursor.Key
	case req.Direction == Backward:
		return nil, fmt.Errorf("%w: backward paging requires a cursor", ErrInvalidRequest)
	}

	items, err := query(ctx, Window{
		Boundary: boundary,
		Older:    req.Direction == Forward,
		Limit:    req.Limit + 1,
	})
	if err != nil {
		return nil, err
	}

	// The lookahead row only signals that an adjacent page exists.
	more := len(items) > req.Limit
	if more {
		items = items[:req.Limit]
	}

	page := &Page[T]{Items: items}
	if req.Direction == Backward {
		// Rows arrived oldest-first; present newest-first like every page.
		lo.Reverse(page.Items)
		page.HasPrev = more
		page.HasNext = true // the boundary article's window lies past the end
	} else {
		page.HasNext = more
		page.HasPrev = boundary != nil
	}

	if len(page.Items) > 0 {
		page.Prev = &Cursor{Key: keyOf(page.Items[0]), Scope: scope}
		page.Next = &Cursor{Key: keyOf(page.Items[len(page.Items)-1]), Scope: scope}
	}

	return page, nil
}
