package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/username"
)

// TimestampLayout renders UTC instants with seven fractional digits, e.g.
// 2025-11-21T01:49:15.0000000Z.
const TimestampLayout = "2006-01-02T15:04:05.0000000Z07:00"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ConversationKey names either the public conversation or the private
// conversation between two users. The pair is unordered.
type ConversationKey struct {
	private bool
	a, b    string
}

// PublicConversation returns the key of the shared public conversation.
func PublicConversation() ConversationKey {
	return ConversationKey{}
}

// PrivateConversation returns the key of the conversation between a and b.
// The order of a and b does not matter.
func PrivateConversation(a, b string) ConversationKey {
	return ConversationKey{private: true, a: a, b: b}
}

// IsPublic reports whether k names the public conversation.
func (k ConversationKey) IsPublic() bool { return !k.private }

// String renders k for logs.
func (k ConversationKey) String() string {
	if k.IsPublic() {
		return "public"
	}
	return fmt.Sprintf("private(%s,%s)", k.a, k.b)
}

func (k ConversationKey) query(limit int) store.Query {
	if k.IsPublic() {
		return store.Public(limit)
	}
	return store.Between(k.a, k.b, limit)
}

// MessageView is one history entry as returned to clients. ToUser is nil for
// public messages.
type MessageView struct {
	FromUser  string  `json:"fromUser"`
	ToUser    *string `json:"toUser"`
	Body      string  `json:"body"`
	Timestamp string  `json:"timestamp"`
}

func newMessageView(r store.Record) MessageView {
	view := MessageView{
		FromUser:  r.FromUser,
		Body:      r.Body,
		Timestamp: FormatTimestamp(r.Timestamp),
	}
	if r.IsPrivate {
		view.ToUser = lo.ToPtr(r.ToUser)
	}
	return view
}

// HistoryProjector turns stored records into the bounded, chronologically
// ordered view of one conversation.
type HistoryProjector struct {
	store MessageStore
	limit int
}

// NewHistoryProjector returns a projector reading from s. A limit <= 0 means
// store.DefaultLimit.
func NewHistoryProjector(s MessageStore, limit int) *HistoryProjector {
	if limit <= 0 {
		limit = store.DefaultLimit
	}
	return &HistoryProjector{store: s, limit: limit}
}

// Limit returns the default bound applied by Fetch.
func (p *HistoryProjector) Limit() int { return p.limit }

// Fetch returns the most recent messages of key, oldest first. At most limit
// messages are returned; limit <= 0 uses the projector's default. A private
// key missing either side matches nothing.
func (p *HistoryProjector) Fetch(ctx context.Context, key ConversationKey, limit int) ([]MessageView, error) {
	if limit <= 0 {
		limit = p.limit
	}
	if !key.IsPublic() && (username.IsBlank(key.a) || username.IsBlank(key.b)) {
		return []MessageView{}, nil
	}

	// Take the newest first so the bound keeps the latest messages, then
	// flip to reading order.
	records, err := p.store.Recent(ctx, key.query(limit))
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", key, err)
	}
	if len(records) > limit {
		records = records[:limit]
	}
	views := lo.Map(records, func(r store.Record, _ int) MessageView { return newMessageView(r) })
	return lo.Reverse(views), nil
}
