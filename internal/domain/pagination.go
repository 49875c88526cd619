package domain

import (
	"encoding/base64"
	"strconv"
)

// Page size bounds for list operations.
const (
	DefaultMaxResults = 100
	MaxMaxResults     = 1000
)

// PageRequest carries the caller's paging parameters. The token is an
// opaque base64 offset; callers never construct it by hand.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Offset decodes the page token. Empty and malformed tokens both mean the
// first page, so a stale token degrades instead of failing the request.
func (p PageRequest) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Limit clamps MaxResults to [1, MaxMaxResults], defaulting when unset.
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultMaxResults
	case p.MaxResults > MaxMaxResults:
		return MaxMaxResults
	default:
		return p.MaxResults
	}
}

// EncodePageToken wraps an offset in the opaque token form. Offset 0 maps
// to the empty token.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// NextPageToken returns the token for the page after the current one, or
// "" when the current page reaches the end of the collection.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return EncodePageToken(next)
}
