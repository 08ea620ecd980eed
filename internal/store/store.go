// Package store holds the message record model shared by the MessageStore
// backends in its subpackages.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/messenger/internal/username"
)

// DefaultLimit bounds history queries that do not set a limit.
const DefaultLimit = 50

var (
	// ErrInvalidRecord is returned by Insert for records without a sender or body.
	ErrInvalidRecord = errors.New("invalid message record")
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("store is closed")
)

// Record is one persisted chat message. Records are immutable once stored.
type Record struct {
	ID        int64     `json:"id"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsPrivate bool      `json:"isPrivate"`
}

// Prepare validates r and derives the stored form: UTC timestamp and
// IsPrivate set iff ToUser is present.
func Prepare(r Record) (Record, error) {
	r.FromUser = username.Normalize(r.FromUser)
	r.ToUser = username.Normalize(r.ToUser)
	if r.FromUser == "" {
		return Record{}, fmt.Errorf("%w: sender is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.Body) == "" {
		return Record{}, fmt.Errorf("%w: body is required", ErrInvalidRecord)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()
	r.IsPrivate = r.ToUser != ""
	return r, nil
}

// Query selects the most recent records of one conversation. A public query
// matches every non-private record; a private query matches records sent in
// either direction between UserA and UserB.
type Query struct {
	Private bool
	UserA   string
	UserB   string
	Limit   int
}

// Public returns the query for the public conversation.
func Public(limit int) Query {
	return Query{Limit: limit}
}

// Between returns the query for the private conversation of a and b.
func Between(a, b string, limit int) Query {
	return Query{Private: true, UserA: a, UserB: b, Limit: limit}
}

// EffectiveLimit returns Limit, or DefaultLimit when unset.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Degenerate reports whether a private query misses one side of the pair and
// therefore matches nothing.
func (q Query) Degenerate() bool {
	return q.Private && (username.IsBlank(q.UserA) || username.IsBlank(q.UserB))
}

// PairKeys returns the folded keys of the private pair in sorted order.
func (q Query) PairKeys() (string, string) {
	return SortedPair(q.UserA, q.UserB)
}

// SortedPair folds a and b and returns them in ascending order, so that both
// directions of a conversation share the same pair.
func SortedPair(a, b string) (string, string) {
	ka, kb := username.Key(a), username.Key(b)
	if kb < ka {
		return kb, ka
	}
	return ka, kb
}
