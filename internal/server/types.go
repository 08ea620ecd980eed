// Package server defines the JSON frames exchanged with clients and utility
// helpers that are reused across client and hub logic.
package server

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Tyrowin/messenger/internal/chat"
)

const (
	frameEvent      = "event"
	frameCompletion = "completion"
)

// Invocation is one inbound action. ID is optional and echoed verbatim in the
// completion frame; invocations without an ID get no completion.
type Invocation struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

func (inv Invocation) wantsCompletion() bool {
	id := bytes.TrimSpace(inv.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

// EventFrame carries one outbound event.
type EventFrame struct {
	Type  string         `json:"type"`
	Event chat.EventName `json:"event"`
	Data  any            `json:"data"`
}

// CompletionFrame answers an Invocation that carried an ID.
type CompletionFrame struct {
	Type   string          `json:"type"`
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func encodeEvent(ev chat.Event) ([]byte, error) {
	return json.Marshal(EventFrame{Type: frameEvent, Event: ev.Name, Data: ev.Data})
}

func encodeCompletion(id json.RawMessage, result any, err error) ([]byte, error) {
	frame := CompletionFrame{Type: frameCompletion, ID: id, Result: result}
	if err != nil {
		frame.Result = nil
		frame.Error = err.Error()
	}
	return json.Marshal(frame)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
