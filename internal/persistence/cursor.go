// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcnester/glycofy-api/internal/domain"
)

// cursorSep joins the keyset fields inside a token. "@" never appears in
// an RFC3339 timestamp, so the split is unambiguous.
const cursorSep = "@"

// ErrBadCursor is returned for tokens that cannot be decoded.
var ErrBadCursor = errors.New("malformed cursor token")

// EncodeCursor packs the keyset position into an opaque token. Unpadded
// URL-safe base64, so it survives a query string without escaping.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.StartedAt.UTC().Format(time.RFC3339Nano) + cursorSep + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unpacks a token produced by EncodeCursor. An empty token
// decodes to nil, meaning the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	startedAt, id, ok := strings.Cut(string(decoded), cursorSep)
	if !ok || id == "" {
		return nil, ErrBadCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return &domain.Cursor{StartedAt: ts, ID: id}, nil
}
