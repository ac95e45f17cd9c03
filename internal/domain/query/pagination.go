// Package query carries pagination primitives shared by repositories and handlers.
package query

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Pagination describes a cursor page request. Before holds the decoded cursor
// timestamp; results are strictly older than it.
type Pagination struct {
	Limit  *int
	Order  string
	Before *time.Time
}

// LimitOrDefault returns the requested limit clamped to [1, max], or def when
// no limit was supplied.
func (p *Pagination) LimitOrDefault(def, max int) int {
	if p == nil || p.Limit == nil {
		return def
	}
	limit := *p.Limit
	if limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// EncodeCursor renders a timestamp as an opaque cursor token.
func EncodeCursor(t time.Time) string {
	raw := strconv.FormatInt(t.UnixNano(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor token produced by EncodeCursor.
func DecodeCursor(cursor string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode cursor: %w", err)
	}
	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor: %w", err)
	}
	return time.Unix(0, nanos).UTC(), nil
}
