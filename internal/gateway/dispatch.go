package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/soratane/duelis-backend/internal/protocol"
)

// HandlerFunc processes one parsed client frame.
type HandlerFunc func(ctx context.Context, c Client, env protocol.Envelope)

// Dispatcher routes inbound frames to handlers through a lookup table that
// is fixed when the dispatcher is built. There is no registration after
// boot.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher(handlers map[string]HandlerFunc) *Dispatcher {
	table := make(map[string]HandlerFunc, len(handlers))
	for t, h := range handlers {
		table[t] = h
	}
	return &Dispatcher{handlers: table}
}

// dispatch parses a raw frame and invokes the matching handler. Frames that
// fail to parse are logged and dropped; unrecognized types are ignored.
func (d *Dispatcher) dispatch(ctx context.Context, c Client, raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("Dropping unparseable frame", "playerID", c.ID(), "error", err)
		return
	}

	handler, ok := d.handlers[env.Type]
	if !ok {
		return
	}
	handler(ctx, c, env)
}
