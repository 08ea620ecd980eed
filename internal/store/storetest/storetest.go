// Package storetest provides a conformance suite shared by the message store
// backends, so every backend is held to the same ordering and filtering
// rules.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/store"
)

// Store is the behaviour under test.
type Store interface {
	Insert(ctx context.Context, record store.Record) (int64, error)
	Recent(ctx context.Context, q store.Query) ([]store.Record, error)
}

// Opener returns a fresh, empty store for one test.
type Opener func(t *testing.T) Store

var base = time.Date(2025, 11, 21, 1, 49, 15, 0, time.UTC)

// Run executes the conformance suite against stores built by open.
func Run(t *testing.T, open Opener) {
	t.Run("Insert assigns increasing ids", func(t *testing.T) {
		testInsertAssignsIDs(t, open(t))
	})
	t.Run("Insert rejects invalid records", func(t *testing.T) {
		testInsertRejectsInvalid(t, open(t))
	})
	t.Run("Recent public newest first and bounded", func(t *testing.T) {
		testRecentPublicBounded(t, open(t))
	})
	t.Run("Recent private matches both directions only", func(t *testing.T) {
		testRecentPrivatePair(t, open(t))
	})
	t.Run("Recent private is case insensitive", func(t *testing.T) {
		testRecentPrivateCaseInsensitive(t, open(t))
	})
	t.Run("Recent breaks timestamp ties by id", func(t *testing.T) {
		testRecentTieBreak(t, open(t))
	})
	t.Run("Recent degenerate private query is empty", func(t *testing.T) {
		testRecentDegenerate(t, open(t))
	})
}

func testInsertAssignsIDs(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	first, err := s.Insert(ctx, store.Record{FromUser: "alice", Body: "one", Timestamp: base})
	req.NoError(err)
	second, err := s.Insert(ctx, store.Record{FromUser: "alice", Body: "two", Timestamp: base})
	req.NoError(err)
	req.Greater(second, first)

	records, err := s.Recent(ctx, store.Public(0))
	req.NoError(err)
	req.Len(records, 2)
	req.Equal(second, records[0].ID)
	req.Equal("two", records[0].Body)
	req.False(records[0].IsPrivate)
	req.Empty(records[0].ToUser)
	req.True(base.Equal(records[0].Timestamp))
	req.Equal(time.UTC, records[0].Timestamp.Location())
}

func testInsertRejectsInvalid(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, store.Record{FromUser: "", Body: "hi"})
	req.ErrorIs(err, store.ErrInvalidRecord)
	_, err = s.Insert(ctx, store.Record{FromUser: "alice", Body: " "})
	req.ErrorIs(err, store.ErrInvalidRecord)

	records, err := s.Recent(ctx, store.Public(0))
	req.NoError(err)
	req.Empty(records)
}

func testRecentPublicBounded(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	// Given 60 public messages and some private noise
	for i := 1; i <= 60; i++ {
		_, err := s.Insert(ctx, store.Record{
			FromUser:  "alice",
			Body:      fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
	}
	_, err := s.Insert(ctx, store.Record{FromUser: "alice", ToUser: "bob", Body: "secret", Timestamp: base.Add(time.Hour)})
	req.NoError(err)

	// When the most recent 50 public messages are requested
	records, err := s.Recent(ctx, store.Public(50))
	req.NoError(err)

	// Then m60..m11 are returned newest first
	req.Len(records, 50)
	req.Equal("m60", records[0].Body)
	req.Equal("m11", records[49].Body)
	for _, r := range records {
		req.False(r.IsPrivate)
	}
}

func testRecentPrivatePair(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	inserts := []store.Record{
		{FromUser: "alice", ToUser: "bob", Body: "a->b"},
		{FromUser: "bob", ToUser: "alice", Body: "b->a"},
		{FromUser: "alice", ToUser: "carol", Body: "a->c"},
		{FromUser: "carol", ToUser: "bob", Body: "c->b"},
		{FromUser: "alice", Body: "public"},
	}
	for i, r := range inserts {
		r.Timestamp = base.Add(time.Duration(i) * time.Minute)
		_, err := s.Insert(ctx, r)
		req.NoError(err)
	}

	records, err := s.Recent(ctx, store.Between("alice", "bob", 0))
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("b->a", records[0].Body)
	req.Equal("a->b", records[1].Body)
	for _, r := range records {
		req.True(r.IsPrivate)
	}

	reversed, err := s.Recent(ctx, store.Between("bob", "alice", 0))
	req.NoError(err)
	req.Equal(records, reversed)
}

func testRecentPrivateCaseInsensitive(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, store.Record{FromUser: "Alice", ToUser: "BOB", Body: "hi", Timestamp: base})
	req.NoError(err)

	records, err := s.Recent(ctx, store.Between("alice", "bob", 0))
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("Alice", records[0].FromUser)
	req.Equal("BOB", records[0].ToUser)
}

func testRecentTieBreak(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, store.Record{FromUser: "alice", Body: fmt.Sprintf("t%d", i), Timestamp: base})
		req.NoError(err)
	}

	records, err := s.Recent(ctx, store.Public(2))
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("t2", records[0].Body)
	req.Equal("t1", records[1].Body)
}

func testRecentDegenerate(t *testing.T, s Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, store.Record{FromUser: "alice", ToUser: "bob", Body: "hi", Timestamp: base})
	req.NoError(err)

	records, err := s.Recent(ctx, store.Between("", "bob", 0))
	req.NoError(err)
	req.Empty(records)
}
