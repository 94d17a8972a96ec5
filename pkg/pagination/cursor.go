package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCursor indicates the cursor could not be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrCursorMismatch indicates the cursor was produced by a query with a
	// different filter or sort.
	ErrCursorMismatch = errors.New("cursor does not belong to query")
)

// Cursor is an opaque continuation token anchored to the last item of a page.
type Cursor string

// Position is the decoded anchor of a cursor: the sort value and identity of
// the last item seen.
type Position struct {
	Timestamp time.Time
	ID        string
}

const cursorSep = "\x1f"

// EncodeCursor builds the cursor continuing q after pos.
func EncodeCursor(q Query, pos Position) Cursor {
	raw := strings.Join([]string{
		q.Fingerprint(),
		pos.Timestamp.UTC().Format(time.RFC3339Nano),
		pos.ID,
	}, cursorSep)
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(raw)))
}

// DecodeCursor returns the position encoded in c.
// It fails with ErrCursorMismatch when c was produced for another query.
func DecodeCursor(q Query, c Cursor) (Position, error) {
	b, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	parts := strings.Split(string(b), cursorSep)
	if len(parts) != 3 {
		return Position{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrInvalidCursor, len(parts))
	}

	if parts[0] != q.Fingerprint() {
		return Position{}, fmt.Errorf("%w: cursor for %q used with %q", ErrCursorMismatch, parts[0], q.Fingerprint())
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return Position{Timestamp: ts, ID: parts[2]}, nil
}
