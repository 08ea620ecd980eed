package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/store/storetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return openTempStore(t)
	})
}

func TestOpen_Requires_Path(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestOpen_Reapplies_Migrations_Idempotently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	// Given a store with one message
	s, err := Open(ctx, path)
	req.NoError(err)
	_, err = s.Insert(ctx, store.Record{FromUser: "alice", Body: "kept"})
	req.NoError(err)
	req.NoError(s.Close())

	// When the database is opened again
	s, err = Open(ctx, path)
	req.NoError(err)
	defer s.Close()

	// Then the message survived and migrations were not replayed
	records, err := s.Recent(ctx, store.Public(0))
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("kept", records[0].Body)

	var applied int
	req.NoError(s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	req.Equal(1, applied)
}

func TestStore_Closed(t *testing.T) {
	req := require.New(t)
	var s *Store

	_, err := s.Insert(context.Background(), store.Record{FromUser: "alice", Body: "hi"})
	req.ErrorIs(err, store.ErrClosed)
	_, err = s.Recent(context.Background(), store.Public(0))
	req.ErrorIs(err, store.ErrClosed)
	req.NoError(s.Close())
}

func TestExtractUp(t *testing.T) {
	req := require.New(t)

	req.Equal("\nCREATE x;\n", extractUp("-- +migrate Up\nCREATE x;\n-- +migrate Down\nDROP x;"))
	req.Equal("CREATE y;", extractUp("CREATE y;"))
}
