//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=mocks/mock_transport.go -package=mocks

package chat

import (
	"context"
	"errors"

	"github.com/Tyrowin/messenger/internal/store"
)

// ErrConnectionGone is returned by Transport.Deliver when the target
// connection is no longer live.
var ErrConnectionGone = errors.New("connection is gone")

// Transport carries outbound events to live connections.
type Transport interface {
	// Connections returns a snapshot of every live connection id, registered
	// or not.
	Connections() []string
	// Deliver hands ev to one connection without blocking. Failures concern
	// that recipient only.
	Deliver(conn string, ev Event) error
}

// MessageStore is the durable, append-only message table.
type MessageStore interface {
	// Insert persists record and returns its id; the record is durable when
	// Insert returns.
	Insert(ctx context.Context, record store.Record) (int64, error)
	// Recent returns at most q.Limit records of one conversation, newest
	// first.
	Recent(ctx context.Context, q store.Query) ([]store.Record, error)
}
