// Package badger provides a BadgerDB-backed message store.
//
// Keys are laid out so that a reverse prefix scan yields the newest messages
// of one conversation first:
//
//	msg:pub:{timestamp_padded}:{id_padded}
//	msg:dm:{hex(userA)}:{hex(userB)}:{timestamp_padded}:{id_padded}
//
// Timestamps are zero-padded to 19 digits and ids to 20 so lexicographic
// order equals chronological order, with the id breaking ties. The private
// pair is the sorted, case-folded pair of usernames, so both directions of a
// conversation share one prefix.
package badger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Tyrowin/messenger/internal/store"
)

var sequenceKey = []byte("seq:messages")

const sequenceBandwidth = 100

// Store persists chat messages in BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the Badger directory at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR), log)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR), log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("lease message sequence: %w", err)
	}
	return &Store{db: db, seq: seq, log: log}, nil
}

// Close releases the id lease and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.seq.Release(); err != nil {
		s.log.Warn("Releasing message sequence failed", "error", err)
	}
	return s.db.Close()
}

func publicPrefix() []byte {
	return []byte("msg:pub:")
}

func pairPrefix(a, b string) []byte {
	return []byte(fmt.Sprintf("msg:dm:%s:%s:", hex.EncodeToString([]byte(a)), hex.EncodeToString([]byte(b))))
}

func messageKey(prefix []byte, record store.Record) []byte {
	return append(append([]byte(nil), prefix...),
		fmt.Sprintf("%019d:%020d", record.Timestamp.UnixNano(), record.ID)...)
}

// Insert stores one message and returns its id. The write is committed before
// Insert returns.
func (s *Store) Insert(ctx context.Context, record store.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	record, err := store.Prepare(record)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	next, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	record.ID = int64(next) + 1

	prefix := publicPrefix()
	if record.IsPrivate {
		prefix = pairPrefix(store.SortedPair(record.FromUser, record.ToUser))
	}
	value, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(prefix, record), value)
	})
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return record.ID, nil
}

// Recent returns at most q.Limit records of the conversation, newest first.
func (s *Store) Recent(ctx context.Context, q store.Query) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Degenerate() {
		return []store.Record{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	prefix := publicPrefix()
	if q.Private {
		prefix = pairPrefix(q.PairKeys())
	}
	limit := q.EffectiveLimit()
	records := make([]store.Record, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Start past the newest key of the prefix and walk backwards.
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if len(records) == limit {
				s.log.Debug("History limit reached", "limit", limit)
				break
			}
			var record store.Record
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &record)
			})
			if err != nil {
				return fmt.Errorf("decode message %q: %w", it.Item().Key(), err)
			}
			record.Timestamp = record.Timestamp.UTC()
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
