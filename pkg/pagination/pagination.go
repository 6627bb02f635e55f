// Package pagination implements opaque keyset cursors for newest-first
// listings ordered by (created_at, id).
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is one page request as read from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so the caller can tell whether a
// next page exists without a count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor produces a URL-safe token.
func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for an empty token.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	at, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidCursor, err)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidCursor, id)
	}
	return &Cursor{CreatedAt: createdAt, ID: n}, nil
}
