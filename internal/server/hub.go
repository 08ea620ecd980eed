// Package server coordinates client registration, event delivery, and
// connection cleanup for the messenger WebSocket system via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/metrics"
)

var errSendBufferFull = errors.New("send buffer full")

// Handler executes the actions read from a connection. Handle runs on the
// connection's read goroutine, so actions of one connection are handled in
// the order they arrive. Disconnect runs exactly once per connection after it
// has left the hub.
type Handler interface {
	Handle(ctx context.Context, conn string, inv Invocation) (any, error)
	Disconnect(ctx context.Context, conn string)
}

// Hub manages all WebSocket client connections and implements chat.Transport
// on top of them. Clients are keyed by their connection id.
type Hub struct {
	log        *slog.Logger
	metrics    *metrics.Metrics
	handler    Handler
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

var _ chat.Transport = (*Hub)(nil)

// NewHub creates a hub ready to Run. The handler is set separately with
// SetHandler because it usually needs the hub as its transport.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		log:        log,
		metrics:    m,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetHandler installs the action handler. It must be called before Run.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Connections returns a sorted snapshot of the live connection ids.
func (h *Hub) Connections() []string {
	h.mutex.RLock()
	ids := lo.Keys(h.clients)
	h.mutex.RUnlock()

	slices.Sort(ids)
	return ids
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Deliver queues ev on the connection's send buffer without blocking. A
// connection whose buffer is full is evicted.
func (h *Hub) Deliver(conn string, ev chat.Event) error {
	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	return h.send(conn, payload)
}

func (h *Hub) send(conn string, payload []byte) error {
	h.mutex.RLock()
	client, exists := h.clients[conn]
	if !exists || client.closed {
		h.mutex.RUnlock()
		return chat.ErrConnectionGone
	}

	// closed is only set under the write lock, so the channel is open here.
	select {
	case client.send <- payload:
		h.mutex.RUnlock()
		return nil
	default:
	}
	h.mutex.RUnlock()

	h.log.Warn("Client removed due to full send buffer", "conn", conn, "addr", client.addr)
	h.release(client)
	return errSendBufferFull
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It should be called in a separate goroutine and returns
// once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.metrics.ConnectionOpened()
			h.log.Info("Client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.release(client)
			h.disconnect(client)
		}
	}
}

// join hands a new client to Run. It reports false once the hub has shut
// down.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave is called once by every read pump on exit.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		// Run has already returned during shutdown.
		h.release(client)
		h.disconnect(client)
	}
}

// release removes the client from the hub and closes its send buffer, which
// makes the write pump close the socket. It is safe to call more than once.
func (h *Hub) release(client *Client) {
	h.mutex.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client || client.closed {
		client.closed = true
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	close(client.send)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.ConnectionClosed()
	h.log.Info("Client unregistered", "conn", client.id, "addr", client.addr, "clients", clientCount)
}

func (h *Hub) disconnect(client *Client) {
	if h.handler == nil {
		return
	}
	h.handler.Disconnect(context.WithoutCancel(h.ctx), client.id)
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	h.mutex.RLock()
	clients := lo.Values(h.clients)
	h.mutex.RUnlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "conn", client.id, "addr", client.addr, "error", err)
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
