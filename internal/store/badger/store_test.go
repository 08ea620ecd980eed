package badger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/store/storetest"
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelError)
}

func TestStore_Conformance_OnDisk(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		s, err := Open(t.TempDir(), testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_Conformance_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		s, err := OpenInMemory(testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_Ids_Stay_Monotonic_Across_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	// Given a store that issued one id
	s, err := Open(dir, testLogger())
	req.NoError(err)
	first, err := s.Insert(ctx, store.Record{FromUser: "alice", Body: "one"})
	req.NoError(err)
	req.NoError(s.Close())

	// When it is reopened and issues another
	s, err = Open(dir, testLogger())
	req.NoError(err)
	defer s.Close()
	second, err := s.Insert(ctx, store.Record{FromUser: "alice", Body: "two"})
	req.NoError(err)

	// Then ids keep increasing and both messages are there
	req.Greater(second, first)
	records, err := s.Recent(ctx, store.Public(0))
	req.NoError(err)
	req.Len(records, 2)
}

func TestStore_Closed(t *testing.T) {
	req := require.New(t)
	s, err := OpenInMemory(testLogger())
	req.NoError(err)
	req.NoError(s.Close())
	req.NoError(s.Close())

	_, err = s.Insert(context.Background(), store.Record{FromUser: "alice", Body: "hi"})
	req.ErrorIs(err, store.ErrClosed)
	_, err = s.Recent(context.Background(), store.Public(0))
	req.ErrorIs(err, store.ErrClosed)
}

func TestPairPrefix_Is_Separator_Safe(t *testing.T) {
	req := require.New(t)

	req.NotEqual(pairPrefix("a:b", "c"), pairPrefix("a", "b:c"))
}
