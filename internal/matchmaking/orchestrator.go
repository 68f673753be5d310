package matchmaking

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/soratane/duelis-backend/internal/events"
	"github.com/soratane/duelis-backend/internal/gateway"
	"github.com/soratane/duelis-backend/internal/pkg/metrics"
	"github.com/soratane/duelis-backend/internal/protocol"
	"github.com/soratane/duelis-backend/internal/session"
)

// GameProvisioner starts the session workflow for a formed match.
type GameProvisioner interface {
	Provision(m session.Match)
}

// Orchestrator glues gateway frames to the matching engine and formats the
// protocol responses.
type Orchestrator struct {
	engine      Engine
	provisioner GameProvisioner
	feed        *events.Publisher
}

func NewOrchestrator(engine Engine, provisioner GameProvisioner, feed *events.Publisher) *Orchestrator {
	return &Orchestrator{engine: engine, provisioner: provisioner, feed: feed}
}

// HandleFindGame processes one find_game request. Invalid ratings get no
// response at all; an enqueued player gets a searching ack; a matched pair
// is handed to the session provisioner under a fresh game id.
func (o *Orchestrator) HandleFindGame(ctx context.Context, c gateway.Client, env protocol.Envelope) {
	rating, ok := decodeRating(env.Data)
	if !ok {
		slog.Debug("Dropping find_game with unusable rating", "playerID", c.ID())
		metrics.InvalidRatingsTotal.Inc()
		return
	}

	result, err := o.engine.AttemptMatch(ctx, c.ID(), rating)
	if err != nil {
		// Store failure: log and drop, the client may simply retry.
		slog.Error("Match attempt failed", "playerID", c.ID(), "error", err)
		return
	}

	switch result.Outcome {
	case OutcomeInvalid:
		// Deliberately silent; rejected before any state mutation.
		slog.Debug("Rejected out-of-range rating", "playerID", c.ID(), "rating", rating)
		metrics.InvalidRatingsTotal.Inc()

	case OutcomeEnqueued:
		slog.Info("Player enqueued for matchmaking", "playerID", c.ID(), "rating", rating)
		metrics.TicketsEnqueuedTotal.Inc()
		c.Send(protocol.Message{Type: protocol.TypeSearching})

	case OutcomeMatched:
		gameID := uuid.NewString()
		slog.Info("Match formed", "gameID", gameID, "playerID", c.ID(), "opponentID", result.OpponentID)
		metrics.MatchesTotal.Inc()
		o.feed.Publish(ctx, events.TypeMatchFound, gameID,
			events.MatchFound{GameID: gameID, PlayerIDs: []string{c.ID(), result.OpponentID}})
		o.provisioner.Provision(session.Match{
			GameID:      gameID,
			InitiatorID: c.ID(),
			OpponentID:  result.OpponentID,
		})
	}
}

// decodeRating extracts an integer rating from a find_game payload.
// Anything non-numeric or fractional is unusable; range checking is the
// engine's job.
func decodeRating(data []byte) (int, bool) {
	var payload protocol.FindGameData
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, false
	}
	n, err := payload.Rating.Int64()
	if err != nil {
		return 0, false
	}
	return int(n), true
}
