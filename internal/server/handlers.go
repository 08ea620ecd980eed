// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the history view, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Tyrowin/messenger/internal/chat"
)

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and hands it to the hub, which
// starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.hub.join(client) {
		s.log.Info("Rejecting connection during shutdown", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HistoryHandler serves the public conversation's history as JSON. Private
// history needs a registered session and is only served over the WebSocket.
// An optional "limit" narrows the configured bound.
func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := s.history.Limit()
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, s.history.Limit())
	}

	key := chat.PublicConversation()

	views, err := s.history.Fetch(r.Context(), key, limit)
	if err != nil {
		s.log.Error("Reading history failed", "conversation", key.String(), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Messenger server is running!")
}

// TestPageHandler serves an HTML page for trying the chat by hand: register,
// send public or private messages, signal typing and read history.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Messenger WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .row { margin: 6px 0; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Messenger WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <div class="row">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <input type="text" id="username" placeholder="Username">
        <button onclick="invoke('Register', {username: value('username')})">Register</button>
    </div>
    <div class="row">
        <input type="text" id="toUser" placeholder="To user (empty for public)">
        <input type="text" id="message" placeholder="Message">
        <button onclick="send()">Send</button>
        <button onclick="invoke('Typing', {toUser: value('toUser') || null})">Typing</button>
        <button onclick="invoke('MarkConversationSeen', {otherUser: value('toUser')})">Seen</button>
        <button onclick="invoke('GetConversationHistory', {withUser: value('toUser') || null})">History</button>
    </div>
    <div id="log"></div>

    <script>
        let ws = null;
        let nextId = 1;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function value(id) { return document.getElementById(id).value.trim(); }

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addLine('Connected'); updateStatus(true); };
            ws.onmessage = function(event) {
                event.data.split('\n').forEach(function(frame) { addLine('<- ' + frame, 'green'); });
            };
            ws.onclose = function() { addLine('Connection closed'); updateStatus(false); ws = null; };
            ws.onerror = function() { addLine('Connection error', 'red'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function invoke(action, args) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                addLine('Not connected', 'red');
                return;
            }
            const frame = JSON.stringify({id: String(nextId++), action: action, args: args});
            ws.send(frame);
            addLine('-> ' + frame, 'blue');
        }

        function send() {
            const to = value('toUser');
            const me = value('username');
            if (to) {
                invoke('SendPrivateMessage', {fromUser: me, toUser: to, message: value('message')});
            } else {
                invoke('SendPublicMessage', {user: me, message: value('message')});
            }
            document.getElementById('message').value = '';
        }

        document.getElementById('message').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { send(); }
        });
    </script>
</body>
</html>`
