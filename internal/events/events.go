package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Event types published to the lifecycle feed for downstream services.
const (
	TypeMatchFound    = "match.found"
	TypeSessionReady  = "session.ready"
	TypeSessionFailed = "session.failed"
)

// MatchFound announces a freshly formed match.
type MatchFound struct {
	GameID    string   `json:"gameId"`
	PlayerIDs []string `json:"playerIds"`
}

// SessionReady announces that a match's game session became reachable.
type SessionReady struct {
	GameID    string `json:"gameId"`
	SessionID string `json:"sessionId"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
}

// SessionFailed announces that a match was abandoned before its session
// became reachable.
type SessionFailed struct {
	GameID string `json:"gameId"`
	Reason string `json:"reason"`
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Publisher writes lifecycle events to the Kafka feed. A nil Publisher is
// valid and publishes nothing, so the feed can be switched off entirely by
// configuration. Publishing never blocks a player-facing path: the
// underlying writer is asynchronous and failures are only logged.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(writer *kafka.Writer) *Publisher {
	return &Publisher{writer: writer}
}

// Publish emits one event keyed by the game id.
func (p *Publisher) Publish(ctx context.Context, eventType, gameID string, data any) {
	if p == nil || p.writer == nil {
		return
	}

	value, err := json.Marshal(envelope{Type: eventType, Data: data})
	if err != nil {
		slog.Error("Failed to encode lifecycle event", "type", eventType, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(gameID),
		Value: value,
	})
	if err != nil {
		slog.Error("Failed to publish lifecycle event", "type", eventType, "gameID", gameID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
