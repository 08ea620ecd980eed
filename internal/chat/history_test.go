package chat_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/chat/mocks"
	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/store/badger"
)

func openMemoryStore(t *testing.T) *badger.Store {
	t.Helper()
	s, err := badger.OpenInMemory(logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFormatTimestamp(t *testing.T) {
	req := require.New(t)

	at := time.Date(2025, 11, 21, 1, 49, 15, 0, time.UTC)
	req.Equal("2025-11-21T01:49:15.0000000Z", chat.FormatTimestamp(at))

	local := time.Date(2025, 11, 21, 3, 49, 15, 123456700, time.FixedZone("EET", 2*3600))
	req.Equal("2025-11-21T01:49:15.1234567Z", chat.FormatTimestamp(local))
}

func TestConversationKey(t *testing.T) {
	req := require.New(t)

	req.True(chat.PublicConversation().IsPublic())
	req.False(chat.PrivateConversation("alice", "bob").IsPublic())
	req.Equal("public", chat.PublicConversation().String())
	req.Equal("private(alice,bob)", chat.PrivateConversation("alice", "bob").String())
}

func TestHistoryProjector_Fetch_Bounds_And_Orders(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openMemoryStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Given 12 public messages inserted out of order
	for _, i := range []int{5, 1, 12, 3, 9, 2, 11, 4, 8, 6, 10, 7} {
		_, err := s.Insert(ctx, store.Record{
			FromUser:  "alice",
			Body:      fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}
	projector := chat.NewHistoryProjector(s, 10)
	req.Equal(10, projector.Limit())

	// When fetched with the default bound
	views, err := projector.Fetch(ctx, chat.PublicConversation(), 0)
	req.NoError(err)

	// Then the latest ten come back oldest first
	req.Equal(
		lo.Map(lo.RangeFrom(3, 10), func(i, _ int) string { return fmt.Sprintf("m%d", i) }),
		lo.Map(views, func(v chat.MessageView, _ int) string { return v.Body }))

	// When fetched with an explicit bound
	views, err = projector.Fetch(ctx, chat.PublicConversation(), 3)
	req.NoError(err)
	req.Equal([]string{"m10", "m11", "m12"}, lo.Map(views, func(v chat.MessageView, _ int) string { return v.Body }))
	req.Equal("2025-01-01T00:12:00.0000000Z", views[2].Timestamp)
}

func TestHistoryProjector_Private_Pair_Is_Unordered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openMemoryStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	insert := func(minute int, from, to, body string) {
		_, err := s.Insert(ctx, store.Record{FromUser: from, ToUser: to, Body: body, Timestamp: base.Add(time.Duration(minute) * time.Minute)})
		req.NoError(err)
	}
	insert(1, "alice", "bob", "a->b")
	insert(2, "bob", "alice", "b->a")
	insert(3, "alice", "carol", "a->c")
	insert(4, "alice", "", "public")

	projector := chat.NewHistoryProjector(s, 0)
	req.Equal(store.DefaultLimit, projector.Limit())

	fromAlice, err := projector.Fetch(ctx, chat.PrivateConversation("alice", "bob"), 0)
	req.NoError(err)
	fromBob, err := projector.Fetch(ctx, chat.PrivateConversation("BOB", "alice"), 0)
	req.NoError(err)

	req.Equal(fromAlice, fromBob)
	req.Equal([]chat.MessageView{
		{FromUser: "alice", ToUser: lo.ToPtr("bob"), Body: "a->b", Timestamp: "2025-01-01T00:01:00.0000000Z"},
		{FromUser: "bob", ToUser: lo.ToPtr("alice"), Body: "b->a", Timestamp: "2025-01-01T00:02:00.0000000Z"},
	}, fromAlice)
}

func TestHistoryProjector_Degenerate_Key_Skips_The_Store(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := mocks.NewMockMessageStore(ctrl)
	mockStore.EXPECT().Recent(gomock.Any(), gomock.Any()).Times(0)

	views, err := chat.NewHistoryProjector(mockStore, 0).Fetch(context.Background(), chat.PrivateConversation("", "bob"), 0)

	req.NoError(err)
	req.NotNil(views)
	req.Empty(views)
}

func TestHistoryProjector_Propagates_Store_Errors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := mocks.NewMockMessageStore(ctrl)
	boom := errors.New("io error")
	mockStore.EXPECT().Recent(gomock.Any(), store.Public(50)).Return(nil, boom).Times(1)

	_, err := chat.NewHistoryProjector(mockStore, 0).Fetch(context.Background(), chat.PublicConversation(), 0)

	req.ErrorIs(err, boom)
}
