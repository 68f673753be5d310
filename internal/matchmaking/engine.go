package matchmaking

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outcome classifies the result of an AttemptMatch call.
type Outcome int

const (
	// OutcomeInvalid means the rating was rejected; no state changed and the
	// caller must send no response at all.
	OutcomeInvalid Outcome = iota
	// OutcomeEnqueued means no opponent was waiting; the player now holds a
	// ticket in their rating's bucket.
	OutcomeEnqueued
	// OutcomeMatched means a waiting opponent was claimed and both tickets
	// are gone.
	OutcomeMatched
)

// Result is the outcome of one atomic match attempt.
type Result struct {
	Outcome    Outcome
	OpponentID string
}

// Engine is the one strong-consistency point in the system: an atomic
// match-or-enqueue against the Redis store every gateway process shares.
type Engine interface {
	// AttemptMatch either claims the oldest waiting ticket with the same
	// rating or enqueues the player, as a single indivisible operation.
	AttemptMatch(ctx context.Context, playerID string, rating int) (Result, error)
	// RemoveTicket drops the player's ticket from every bucket it occupies.
	// Called synchronously when the player's connection closes.
	RemoveTicket(ctx context.Context, playerID string) error
}

type redisEngine struct {
	rdb       *redis.Client
	match     *redis.Script
	remove    *redis.Script
	minRating int
	maxRating int
}

func NewEngine(rdb *redis.Client, minRating, maxRating int) Engine {
	return &redisEngine{
		rdb:       rdb,
		match:     redis.NewScript(matchScript),
		remove:    redis.NewScript(removeScript),
		minRating: minRating,
		maxRating: maxRating,
	}
}

func (e *redisEngine) AttemptMatch(ctx context.Context, playerID string, rating int) (Result, error) {
	// Reject out-of-range ratings before touching the store. The script
	// validates again so no caller can bypass the check.
	if rating < e.minRating || rating > e.maxRating {
		return Result{Outcome: OutcomeInvalid}, nil
	}

	reply, err := e.match.Run(ctx, e.rdb, nil,
		playerID, rating, e.minRating, e.maxRating, time.Now().Unix()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("run match script: %w", err)
	}
	return parseMatchReply(reply)
}

func (e *redisEngine) RemoveTicket(ctx context.Context, playerID string) error {
	if err := e.remove.Run(ctx, e.rdb, nil, playerID).Err(); err != nil {
		return fmt.Errorf("run ticket cleanup script: %w", err)
	}
	return nil
}

func parseMatchReply(reply any) (Result, error) {
	arr, ok := reply.([]any)
	if !ok || len(arr) != 2 {
		return Result{}, fmt.Errorf("unexpected match script reply: %v", reply)
	}

	valid, ok := arr[1].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected match script flag: %v", arr[1])
	}
	if valid == 0 {
		return Result{Outcome: OutcomeInvalid}, nil
	}

	opponent, _ := arr[0].(string)
	if opponent == "" {
		return Result{Outcome: OutcomeEnqueued}, nil
	}
	return Result{Outcome: OutcomeMatched, OpponentID: opponent}, nil
}
