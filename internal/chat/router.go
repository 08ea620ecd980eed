// Package chat routes client actions to the right set of live connections.
//
// The Router owns no connection state of its own: identity comes from the
// presence Registry, live connections from the Transport and durable
// messages from the MessageStore. Every fan-out is computed from a snapshot
// taken before the first delivery, and no lock is held while delivering or
// while talking to the store.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/metrics"
	"github.com/Tyrowin/messenger/internal/presence"
	"github.com/Tyrowin/messenger/internal/store"
	"github.com/Tyrowin/messenger/internal/username"
)

// Action names, as invoked by clients. Disconnect is raised by the transport
// and only names the action in logs and metrics.
const (
	ActionRegister               = "Register"
	ActionSendPublicMessage      = "SendPublicMessage"
	ActionSendPrivateMessage     = "SendPrivateMessage"
	ActionTyping                 = "Typing"
	ActionMarkConversationSeen   = "MarkConversationSeen"
	ActionGetConversationHistory = "GetConversationHistory"
	ActionDisconnect             = "Disconnect"
)

// Router applies client actions to presence and storage and decides which
// connections hear about them. It is safe for concurrent use.
type Router struct {
	log       *slog.Logger
	registry  *presence.Registry
	store     MessageStore
	transport Transport
	history   *HistoryProjector
	metrics   *metrics.Metrics
	now       func() time.Time

	historyLimit int
}

// Option configures a Router.
type Option func(*Router)

// WithClock replaces the clock used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithMetrics records deliveries, drops and ignored actions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithHistoryLimit bounds history views. Values <= 0 keep store.DefaultLimit.
func WithHistoryLimit(limit int) Option {
	return func(r *Router) { r.historyLimit = limit }
}

// NewRouter wires a Router over registry, s and transport. History views use
// the same store.
func NewRouter(log *slog.Logger, registry *presence.Registry, s MessageStore, transport Transport, opts ...Option) *Router {
	r := &Router{
		log:       log,
		registry:  registry,
		store:     s,
		transport: transport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.history = NewHistoryProjector(s, r.historyLimit)
	return r
}

// History returns the projector backing GetConversationHistory.
func (r *Router) History() *HistoryProjector { return r.history }

// Register binds conn to name. The caller receives Registered, everyone the
// refreshed UserList, then every other connection UserJoined. When conn was
// the last connection of another name, that name leaves first.
func (r *Router) Register(_ context.Context, conn, name string) Outcome {
	reg := r.registry.Register(conn, name)
	if !reg.Applied {
		return r.ignore(ActionRegister, conn, ReasonBlankUsername)
	}
	r.metrics.SetOnlineUsers(r.registry.Count())
	r.log.Info("User registered", "conn", conn, "user", reg.Username)

	if reg.PreviousRemoved {
		r.broadcast(userLeftEvent(reg.Previous), "")
	}
	r.deliver([]string{conn}, registeredEvent(reg.Username))
	r.broadcastUserList()
	r.broadcast(userJoinedEvent(reg.Username), conn)
	return Applied
}

// Disconnect drops conn from presence. It is driven by the transport when a
// connection goes away. UserLeft is broadcast only when the last connection
// of a username leaves; the UserList is refreshed on every disconnect.
func (r *Router) Disconnect(_ context.Context, conn string) Outcome {
	dep := r.registry.Disconnect(conn)
	if dep.FullyRemoved {
		r.metrics.SetOnlineUsers(r.registry.Count())
		r.log.Info("User left", "conn", conn, "user", dep.Username)
		r.broadcast(userLeftEvent(dep.Username), "")
	}
	r.broadcastUserList()
	if !dep.Found {
		return r.ignore(ActionDisconnect, conn, ReasonUnknownCaller)
	}
	return Applied
}

// SendPublicMessage persists a public message and broadcasts it to every
// live connection, the sender included. Nothing is broadcast when the
// message could not be stored.
func (r *Router) SendPublicMessage(ctx context.Context, conn, fromUser, body string) (Outcome, error) {
	switch {
	case strings.TrimSpace(body) == "":
		return r.ignore(ActionSendPublicMessage, conn, ReasonBlankBody), nil
	case username.IsBlank(fromUser):
		return r.ignore(ActionSendPublicMessage, conn, ReasonBlankSender), nil
	}

	record, err := r.persist(ctx, store.Record{FromUser: fromUser, Body: body})
	if err != nil {
		return Outcome{}, err
	}
	r.broadcast(Event{Name: EventReceivePublicMessage, Data: PublicMessagePayload{
		User:      record.FromUser,
		Message:   record.Body,
		Timestamp: FormatTimestamp(record.Timestamp),
	}}, "")
	return Applied, nil
}

// SendPrivateMessage persists a private message and delivers it to the
// sending connection and to every connection of toUser. An offline recipient
// still finds the message in history later.
func (r *Router) SendPrivateMessage(ctx context.Context, conn, fromUser, toUser, body string) (Outcome, error) {
	switch {
	case username.IsBlank(toUser):
		return r.ignore(ActionSendPrivateMessage, conn, ReasonBlankRecipient), nil
	case strings.TrimSpace(body) == "":
		return r.ignore(ActionSendPrivateMessage, conn, ReasonBlankBody), nil
	case username.IsBlank(fromUser):
		return r.ignore(ActionSendPrivateMessage, conn, ReasonBlankSender), nil
	}

	record, err := r.persist(ctx, store.Record{FromUser: fromUser, ToUser: toUser, Body: body})
	if err != nil {
		return Outcome{}, err
	}

	recipients := lo.Uniq(append([]string{conn}, r.registry.ConnectionsFor(record.ToUser)...))
	recipients = lo.Compact(recipients)
	r.deliver(recipients, Event{Name: EventReceivePrivateMessage, Data: PrivateMessagePayload{
		FromUser:  record.FromUser,
		ToUser:    record.ToUser,
		Message:   record.Body,
		Timestamp: FormatTimestamp(record.Timestamp),
	}})
	return Applied, nil
}

// Typing relays a typing indicator from the caller. A blank toUser means the
// public conversation: every connection except the caller's hears it.
// Otherwise only toUser's connections do.
func (r *Router) Typing(_ context.Context, conn, toUser string) Outcome {
	caller, ok := r.registry.UsernameFor(conn)
	if !ok {
		return r.ignore(ActionTyping, conn, ReasonUnknownCaller)
	}

	if username.IsBlank(toUser) {
		r.broadcast(Event{Name: EventUserTyping, Data: TypingPayload{FromUser: caller}}, conn)
		return Applied
	}

	toUser = username.Normalize(toUser)
	recipients := lo.Without(r.registry.ConnectionsFor(toUser), conn)
	r.deliver(recipients, Event{Name: EventUserTyping, Data: TypingPayload{
		FromUser: caller,
		ToUser:   lo.ToPtr(toUser),
	}})
	return Applied
}

// MarkConversationSeen tells otherUser's connections that the caller has
// read their conversation. The receipt is neither stored nor retried.
func (r *Router) MarkConversationSeen(_ context.Context, conn, otherUser string) Outcome {
	caller, ok := r.registry.UsernameFor(conn)
	if !ok {
		return r.ignore(ActionMarkConversationSeen, conn, ReasonUnknownCaller)
	}
	if username.IsBlank(otherUser) {
		return r.ignore(ActionMarkConversationSeen, conn, ReasonBlankRecipient)
	}

	r.deliver(r.registry.ConnectionsFor(otherUser), Event{
		Name: EventConversationSeen,
		Data: SeenPayload{ByUser: caller},
	})
	return Applied
}

// GetConversationHistory returns the public history when withUser is blank,
// or the caller's private conversation with withUser. An unregistered caller
// has no private conversations and gets an empty view.
func (r *Router) GetConversationHistory(ctx context.Context, conn, withUser string) ([]MessageView, error) {
	key := PublicConversation()
	if !username.IsBlank(withUser) {
		caller, _ := r.registry.UsernameFor(conn)
		key = PrivateConversation(caller, withUser)
	}
	return r.history.Fetch(ctx, key, 0)
}

func (r *Router) persist(ctx context.Context, record store.Record) (store.Record, error) {
	record.FromUser = username.Normalize(record.FromUser)
	record.ToUser = username.Normalize(record.ToUser)
	record.Timestamp = r.now().UTC()
	record.IsPrivate = record.ToUser != ""

	id, err := r.store.Insert(ctx, record)
	if err != nil {
		r.log.Error("Persisting message failed", "user", record.FromUser, "to", record.ToUser, "error", err)
		return store.Record{}, fmt.Errorf("persist message: %w", err)
	}
	record.ID = id
	r.metrics.MessagePersisted(record.IsPrivate)
	return record, nil
}

func (r *Router) broadcastUserList() {
	r.broadcast(userListEvent(r.registry.AllUsernames()), "")
}

// broadcast delivers ev to a snapshot of every live connection, skipping
// except when it is set.
func (r *Router) broadcast(ev Event, except string) {
	conns := r.transport.Connections()
	if except != "" {
		conns = lo.Without(conns, except)
	}
	r.deliver(conns, ev)
}

// deliver hands ev to each connection. A failed delivery concerns only its
// recipient.
func (r *Router) deliver(conns []string, ev Event) {
	for _, conn := range conns {
		if err := r.transport.Deliver(conn, ev); err != nil {
			r.metrics.DeliveryDropped(string(ev.Name))
			r.log.Debug("Delivery dropped", "conn", conn, "event", ev.Name, "error", err)
			continue
		}
		r.metrics.EventDelivered(string(ev.Name))
	}
}

func (r *Router) ignore(action, conn string, reason Reason) Outcome {
	r.metrics.ActionIgnored(action, string(reason))
	r.log.Debug("Action ignored", "action", action, "conn", conn, "reason", reason)
	return Ignored(reason)
}
