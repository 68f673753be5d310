package matchmaking

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (Engine, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewEngine(rdb, 1, 30), rdb
}

func TestAttemptMatchRejectsOutOfRangeRatings(t *testing.T) {
	ctx := context.Background()
	engine, rdb := newTestEngine(t)

	for _, rating := range []int{0, 31, -5, 100} {
		result, err := engine.AttemptMatch(ctx, "player-1", rating)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInvalid, result.Outcome, "rating %d", rating)
	}

	keys, err := rdb.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys, "rejected ratings must not mutate the store")
}

func TestAttemptMatchEnqueuesThenPairs(t *testing.T) {
	ctx := context.Background()
	engine, rdb := newTestEngine(t)

	first, err := engine.AttemptMatch(ctx, "user-a", 15)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, first.Outcome)

	bucket, err := rdb.LRange(ctx, "mm:bucket:15", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a"}, bucket)

	second, err := engine.AttemptMatch(ctx, "user-b", 15)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, second.Outcome)
	assert.Equal(t, "user-a", second.OpponentID)

	// Both tickets and all bucket membership must be gone.
	keys, err := rdb.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAttemptMatchDifferentRatingsDoNotPair(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	first, err := engine.AttemptMatch(ctx, "user-a", 15)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, first.Outcome)

	second, err := engine.AttemptMatch(ctx, "user-b", 16)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, second.Outcome)
}

func TestAttemptMatchIsIdempotentWhileWaiting(t *testing.T) {
	ctx := context.Background()
	engine, rdb := newTestEngine(t)

	for i := 0; i < 3; i++ {
		result, err := engine.AttemptMatch(ctx, "user-a", 15)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEnqueued, result.Outcome)
	}

	// Repeated requests must never leave more than one active ticket.
	count, err := rdb.LLen(ctx, "mm:bucket:15").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	buckets, err := rdb.LRange(ctx, "mm:ticket:user-a:buckets", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"15"}, buckets)
}

func TestRemoveTicketPreventsMatchingDisconnectedPlayer(t *testing.T) {
	ctx := context.Background()
	engine, rdb := newTestEngine(t)

	_, err := engine.AttemptMatch(ctx, "user-a", 15)
	require.NoError(t, err)

	require.NoError(t, engine.RemoveTicket(ctx, "user-a"))

	result, err := engine.AttemptMatch(ctx, "user-b", 15)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, result.Outcome, "a removed ticket must never be returned as a match")

	keys, err := rdb.Keys(ctx, "*").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mm:bucket:15", "mm:ticket:user-b", "mm:ticket:user-b:buckets"}, keys)
}

func TestRemoveTicketForUnknownPlayerIsNoOp(t *testing.T) {
	engine, _ := newTestEngine(t)
	assert.NoError(t, engine.RemoveTicket(context.Background(), "ghost"))
}

func TestAttemptMatchOldestTicketWins(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	_, err := engine.AttemptMatch(ctx, "early", 20)
	require.NoError(t, err)

	result, err := engine.AttemptMatch(ctx, "late", 20)
	require.NoError(t, err)
	require.Equal(t, OutcomeMatched, result.Outcome)
	assert.Equal(t, "early", result.OpponentID)
}
