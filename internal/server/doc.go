// Package server implements the WebSocket transport and HTTP surface of the
// messenger.
//
// The Hub owns the live connections and implements chat.Transport; each
// Client runs a read pump that feeds invocations to the Dispatcher in
// arrival order and a write pump that drains its send buffer. Configuration,
// origin checks, rate limiting, routing and HTTP handlers each live in their
// own file.
//
// Inbound frames are JSON invocations:
//
//	{"id":"7","action":"SendPrivateMessage","args":{"fromUser":"alice","toUser":"bob","message":"hi"}}
//
// Outbound frames are events or completions:
//
//	{"type":"event","event":"UserJoined","data":{"username":"alice"}}
//	{"type":"completion","id":"7","result":{"outcome":"applied"}}
//
// Several frames may share one WebSocket message, separated by newlines.
package server
