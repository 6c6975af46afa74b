package paging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidRequest marks bad caller input: a limit out of range, an
	// unknown direction, or a backward request without a cursor.
	ErrInvalidRequest = errors.New("invalid page request")

	// ErrInvalidCursor marks a token that fails to decode or that was
	// issued for a different scope.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Key is the composite ordering key over articles: publication time with the
// id as tie breaker. Offsets shift when rows are inserted, keys do not.
type Key struct {
	Time time.Time
	ID   string
}

// Before reports whether k sorts strictly older than other.
func (k Key) Before(other Key) bool {
	if !k.Time.Equal(other.Time) {
		return k.Time.Before(other.Time)
	}
	return k.ID < other.ID
}

// Cursor is a boundary key bound to the scope it was issued for. It carries
// no server-side state; the token alone is enough to resume pagination.
type Cursor struct {
	Key   Key
	Scope string
}

const cursorSep = "|"

// Encode serializes the cursor to a token safe for URL query parameters.
// Both the article id and the scope fingerprint are base64url/plain-word
// values, so the separator cannot collide.
func (c Cursor) Encode() string {
	raw := strings.Join([]string{
		c.Key.Time.UTC().Format(time.RFC3339Nano),
		c.Key.ID,
		c.Scope,
	}, cursorSep)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token and verifies it belongs to the given scope.
func DecodeCursor(token, scope string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	parts := strings.SplitN(string(raw), cursorSep, 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp: %v", ErrInvalidCursor, err)
	}

	if parts[2] != scope {
		return nil, fmt.Errorf("%w: token issued for scope %q, requested %q", ErrInvalidCursor, parts[2], scope)
	}

	return &Cursor{
		Key:   Key{Time: ts, ID: parts[1]},
		Scope: scope,
	}, nil
}
