package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soratane/duelis-backend/internal/protocol"
)

// DisconnectHook runs after a connection has been removed from the registry,
// whether the client closed cleanly or the liveness sweep reclaimed it.
// Ticket cleanup and session-poll cancellation hang off these.
type DisconnectHook func(ctx context.Context, playerID string)

const hookTimeout = 5 * time.Second

// Config wires a Gateway. Everything is fixed at construction; in
// particular the dispatch table and disconnect hooks cannot change after
// boot.
type Config struct {
	Registry     *Registry
	Verifier     *TokenVerifier
	Dispatcher   *Dispatcher
	PingInterval time.Duration
	OnDisconnect []DisconnectHook
}

// Gateway owns every live connection on this process: it authenticates
// handshakes, runs the read pump per connection, sweeps for dead sockets
// and dispatches parsed frames.
type Gateway struct {
	registry     *Registry
	verifier     *TokenVerifier
	dispatcher   *Dispatcher
	pingInterval time.Duration
	onDisconnect []DisconnectHook

	upgrader websocket.Upgrader
}

func New(cfg Config) *Gateway {
	return &Gateway{
		registry:     cfg.Registry,
		verifier:     cfg.Verifier,
		dispatcher:   cfg.Dispatcher,
		pingInterval: cfg.PingInterval,
		onDisconnect: cfg.OnDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP performs the handshake: verify the credential, upgrade, and run
// the connection's read pump until it disconnects. A missing or invalid
// credential terminates the request before anything else happens.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, err := g.verifier.Verify(tokenFromRequest(r))
	if err != nil {
		slog.Warn("Rejecting unauthenticated connection", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "playerID", playerID, "error", err)
		return
	}

	c := newConnection(playerID, conn)
	if prev := g.registry.Add(c); prev != nil {
		// The player reconnected; drop the stale socket so its pump exits.
		slog.Info("Replacing existing connection", "playerID", playerID)
		prev.Close()
	}
	slog.Info("Client connected", "playerID", playerID)

	c.Send(protocol.Message{Type: protocol.TypeConnected})

	g.readPump(r.Context(), c)
}

func (g *Gateway) readPump(ctx context.Context, c *Connection) {
	defer func() {
		removed := g.registry.Remove(c)
		c.Close()
		slog.Info("Client disconnected", "playerID", c.id)
		// Skip the hooks when this connection was already replaced by a
		// reconnect; running them would tear down the new connection's state.
		if !removed {
			return
		}
		hookCtx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		for _, hook := range g.onDisconnect {
			hook(hookCtx, c.id)
		}
	}()

	c.conn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Connection closed unexpectedly", "playerID", c.id, "error", err)
			}
			return
		}
		g.dispatcher.dispatch(ctx, c, raw)
	}
}

// Run executes the liveness sweep until the context is cancelled. Each tick
// terminates every connection that did not answer the previous ping and
// pings the rest. This is the only path that reclaims silently dead
// sockets; their read pumps observe the close and deregister as usual.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *Gateway) sweep() {
	for _, c := range g.registry.snapshot() {
		if !c.alive.Load() {
			slog.Info("Terminating unresponsive connection", "playerID", c.id)
			c.Close()
			continue
		}
		c.alive.Store(false)
		c.ping()
	}
}

// Shutdown closes every held connection.
func (g *Gateway) Shutdown() {
	g.registry.CloseAll()
}
