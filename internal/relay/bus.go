package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/soratane/duelis-backend/internal/pkg/metrics"
	"github.com/soratane/duelis-backend/internal/protocol"
)

// Envelope is what crosses the shared broadcast channel: a pre-encoded
// payload and the players it is meant for.
type Envelope struct {
	Data      json.RawMessage    `json:"data"`
	Recipient protocol.Recipient `json:"recipient"`
}

// LocalSender delivers a payload to a player connected to this process.
// The gateway registry satisfies it.
type LocalSender interface {
	SendRaw(playerID string, payload []byte) bool
}

// Bus connects every gateway process through one Redis pub/sub channel.
// Publishing is fire-and-forget: each subscribed process forwards the
// payload to whichever recipients it holds locally and ignores the rest.
// Delivery is at most once; if nobody holds the recipient, the message is
// lost.
type Bus struct {
	rdb     *redis.Client
	channel string
	local   LocalSender

	subscribed chan struct{}
}

func New(rdb *redis.Client, channel string, local LocalSender) *Bus {
	return &Bus{
		rdb:        rdb,
		channel:    channel,
		local:      local,
		subscribed: make(chan struct{}),
	}
}

// Subscribed is closed once the bus has joined the shared channel.
// Envelopes published before that are lost, like any other relay message
// nobody is listening for.
func (b *Bus) Subscribed() <-chan struct{} {
	return b.subscribed
}

// Publish broadcasts a message to every gateway process for the given
// recipients. The message is encoded once here so each process relays the
// exact same bytes.
func (b *Bus) Publish(ctx context.Context, message any, recipients ...string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}
	env, err := json.Marshal(Envelope{Data: data, Recipient: recipients})
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, env).Err(); err != nil {
		return fmt.Errorf("publish relay envelope: %w", err)
	}
	return nil
}

// Run subscribes to the shared channel and forwards incoming envelopes to
// local connections until the context is cancelled. It blocks; run it in
// its own goroutine.
func (b *Bus) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	close(b.subscribed)

	slog.Info("Relay bus subscribed", "channel", b.channel)
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Relay bus stopping")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver([]byte(msg.Payload))
		}
	}
}

func (b *Bus) deliver(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("Dropping malformed relay envelope", "error", err)
		return
	}
	for _, id := range env.Recipient {
		if b.local.SendRaw(id, env.Data) {
			metrics.RelayDeliveredTotal.Inc()
		} else {
			// Recipient is not on this process; some other subscriber may
			// hold them. Nothing to do here.
			metrics.RelayDroppedTotal.Inc()
		}
	}
}

// Ping reports whether the relay transport is reachable.
func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}
