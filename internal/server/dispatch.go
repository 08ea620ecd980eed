package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/messenger/internal/chat"
)

var (
	errUnknownAction = errors.New("unknown action")
	errInvalidArgs   = errors.New("invalid arguments")
)

type registerArgs struct {
	Username string `json:"username"`
}

type publicMessageArgs struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

type privateMessageArgs struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
	Message  string `json:"message"`
}

type typingArgs struct {
	ToUser string `json:"toUser"`
}

type seenArgs struct {
	OtherUser string `json:"otherUser"`
}

type historyArgs struct {
	WithUser string `json:"withUser"`
}

// OutcomeResult is the completion result of every action except
// GetConversationHistory.
type OutcomeResult struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func newOutcomeResult(o chat.Outcome) OutcomeResult {
	if o.Applied {
		return OutcomeResult{Outcome: "applied"}
	}
	return OutcomeResult{Outcome: "ignored", Reason: string(o.Reason)}
}

// Dispatcher maps invocations onto Router operations. It is the hub's
// Handler.
type Dispatcher struct {
	log    *slog.Logger
	router *chat.Router
}

var _ Handler = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher that forwards to router.
func NewDispatcher(log *slog.Logger, router *chat.Router) *Dispatcher {
	return &Dispatcher{log: log, router: router}
}

// Handle decodes inv's arguments and runs the matching action. Arguments may
// be an object keyed by parameter name or an array in parameter order.
func (d *Dispatcher) Handle(ctx context.Context, conn string, inv Invocation) (any, error) {
	switch inv.Action {
	case chat.ActionRegister:
		var args registerArgs
		if err := decodeArgs(inv.Args, &args, "username"); err != nil {
			return nil, err
		}
		return newOutcomeResult(d.router.Register(ctx, conn, args.Username)), nil

	case chat.ActionSendPublicMessage:
		var args publicMessageArgs
		if err := decodeArgs(inv.Args, &args, "user", "message"); err != nil {
			return nil, err
		}
		outcome, err := d.router.SendPublicMessage(ctx, conn, args.User, args.Message)
		if err != nil {
			return nil, err
		}
		return newOutcomeResult(outcome), nil

	case chat.ActionSendPrivateMessage:
		var args privateMessageArgs
		if err := decodeArgs(inv.Args, &args, "fromUser", "toUser", "message"); err != nil {
			return nil, err
		}
		outcome, err := d.router.SendPrivateMessage(ctx, conn, args.FromUser, args.ToUser, args.Message)
		if err != nil {
			return nil, err
		}
		return newOutcomeResult(outcome), nil

	case chat.ActionTyping:
		var args typingArgs
		if err := decodeArgs(inv.Args, &args, "toUser"); err != nil {
			return nil, err
		}
		return newOutcomeResult(d.router.Typing(ctx, conn, args.ToUser)), nil

	case chat.ActionMarkConversationSeen:
		var args seenArgs
		if err := decodeArgs(inv.Args, &args, "otherUser"); err != nil {
			return nil, err
		}
		return newOutcomeResult(d.router.MarkConversationSeen(ctx, conn, args.OtherUser)), nil

	case chat.ActionGetConversationHistory:
		var args historyArgs
		if err := decodeArgs(inv.Args, &args, "withUser"); err != nil {
			return nil, err
		}
		return d.router.GetConversationHistory(ctx, conn, args.WithUser)

	default:
		d.log.Debug("Unknown action", "conn", conn, "action", inv.Action)
		return nil, fmt.Errorf("%w: %q", errUnknownAction, inv.Action)
	}
}

// Disconnect forwards transport teardown to the router.
func (d *Dispatcher) Disconnect(ctx context.Context, conn string) {
	d.router.Disconnect(ctx, conn)
}

// decodeArgs unmarshals raw into dst. Positional arguments are mapped onto
// names in order; null arguments leave the field empty.
func decodeArgs(raw json.RawMessage, dst any, names ...string) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '[' {
		var values []json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("%w: %v", errInvalidArgs, err)
		}
		if len(values) > len(names) {
			return fmt.Errorf("%w: expected at most %d arguments, got %d", errInvalidArgs, len(names), len(values))
		}
		named := make(map[string]json.RawMessage, len(values))
		for i, value := range values {
			named[names[i]] = value
		}
		var err error
		if raw, err = json.Marshal(named); err != nil {
			return fmt.Errorf("%w: %v", errInvalidArgs, err)
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}
