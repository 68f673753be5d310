package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is the view of a connected player that message handlers get.
type Client interface {
	ID() string
	Send(message any) bool
}

// Connection wraps one authenticated WebSocket. It is owned by the gateway
// instance that accepted it and is never shared across processes.
type Connection struct {
	id   string
	conn *websocket.Conn

	// Gorilla connections allow at most one concurrent writer.
	writeMu sync.Mutex

	alive    atomic.Bool
	lastPong atomic.Int64
}

func newConnection(id string, conn *websocket.Conn) *Connection {
	c := &Connection{id: id, conn: conn}
	c.markAlive()
	return c
}

func (c *Connection) ID() string { return c.id }

// Send marshals the message and writes it to the socket. A false return
// means the write failed and the connection is effectively dead; the read
// pump will notice and tear it down.
func (c *Connection) Send(message any) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(message) == nil
}

// SendRaw writes an already-encoded frame, preserving the payload byte for
// byte. Used by the relay bus so a forwarded message is delivered exactly
// as published.
func (c *Connection) SendRaw(payload []byte) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload) == nil
}

func (c *Connection) ping() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)) == nil
}

func (c *Connection) markAlive() {
	c.alive.Store(true)
	c.lastPong.Store(time.Now().Unix())
}

// Close terminates the underlying socket. Safe to call more than once.
func (c *Connection) Close() {
	c.conn.Close()
}
