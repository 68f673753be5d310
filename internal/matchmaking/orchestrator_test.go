package matchmaking

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soratane/duelis-backend/internal/protocol"
	"github.com/soratane/duelis-backend/internal/session"
)

type fakeClient struct {
	id   string
	sent []any
}

func (c *fakeClient) ID() string { return c.id }
func (c *fakeClient) Send(message any) bool {
	c.sent = append(c.sent, message)
	return true
}

type fakeEngine struct {
	result Result
	err    error
	calls  []struct {
		playerID string
		rating   int
	}
}

func (e *fakeEngine) AttemptMatch(_ context.Context, playerID string, rating int) (Result, error) {
	e.calls = append(e.calls, struct {
		playerID string
		rating   int
	}{playerID, rating})
	return e.result, e.err
}

func (e *fakeEngine) RemoveTicket(context.Context, string) error { return nil }

type fakeProvisioner struct {
	matches []session.Match
}

func (p *fakeProvisioner) Provision(m session.Match) {
	p.matches = append(p.matches, m)
}

func findGameEnvelope(data string) protocol.Envelope {
	return protocol.Envelope{
		Type: protocol.TypeFindGame,
		Data: json.RawMessage(data),
	}
}

func TestHandleFindGameEnqueuedSendsSearchingAck(t *testing.T) {
	engine := &fakeEngine{result: Result{Outcome: OutcomeEnqueued}}
	prov := &fakeProvisioner{}
	orch := NewOrchestrator(engine, prov, nil)
	client := &fakeClient{id: "user-a"}

	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":15}`))

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "user-a", engine.calls[0].playerID)
	assert.Equal(t, 15, engine.calls[0].rating)

	require.Len(t, client.sent, 1)
	msg, ok := client.sent[0].(protocol.Message)
	require.True(t, ok)
	assert.Equal(t, protocol.TypeSearching, msg.Type)
	assert.Empty(t, prov.matches)
}

func TestHandleFindGameMatchedHandsOffToProvisioner(t *testing.T) {
	engine := &fakeEngine{result: Result{Outcome: OutcomeMatched, OpponentID: "user-b"}}
	prov := &fakeProvisioner{}
	orch := NewOrchestrator(engine, prov, nil)
	client := &fakeClient{id: "user-a"}

	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":22}`))

	require.Len(t, prov.matches, 1)
	m := prov.matches[0]
	assert.Equal(t, "user-a", m.InitiatorID)
	assert.Equal(t, "user-b", m.OpponentID)
	assert.NotEmpty(t, m.GameID)

	// The matched pair gets notified by the provisioner, never here.
	assert.Empty(t, client.sent)
}

func TestHandleFindGameMatchedMintsUniqueGameIDs(t *testing.T) {
	engine := &fakeEngine{result: Result{Outcome: OutcomeMatched, OpponentID: "user-b"}}
	prov := &fakeProvisioner{}
	orch := NewOrchestrator(engine, prov, nil)
	client := &fakeClient{id: "user-a"}

	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":22}`))
	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":22}`))

	require.Len(t, prov.matches, 2)
	assert.NotEqual(t, prov.matches[0].GameID, prov.matches[1].GameID)
}

func TestHandleFindGameInvalidIsSilent(t *testing.T) {
	engine := &fakeEngine{result: Result{Outcome: OutcomeInvalid}}
	prov := &fakeProvisioner{}
	orch := NewOrchestrator(engine, prov, nil)
	client := &fakeClient{id: "user-a"}

	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":0}`))

	assert.Empty(t, client.sent, "invalid ratings get no protocol response at all")
	assert.Empty(t, prov.matches)
}

func TestHandleFindGameUnusableRatingsNeverReachEngine(t *testing.T) {
	engine := &fakeEngine{result: Result{Outcome: OutcomeEnqueued}}
	orch := NewOrchestrator(engine, &fakeProvisioner{}, nil)
	client := &fakeClient{id: "user-a"}

	for _, data := range []string{
		`{"rating":"abc"}`,
		`{"rating":15.5}`,
		`{}`,
		`not json`,
	} {
		orch.HandleFindGame(context.Background(), client, findGameEnvelope(data))
	}

	assert.Empty(t, engine.calls)
	assert.Empty(t, client.sent)
}

func TestHandleFindGameStoreErrorIsDropped(t *testing.T) {
	engine := &fakeEngine{err: assert.AnError}
	prov := &fakeProvisioner{}
	orch := NewOrchestrator(engine, prov, nil)
	client := &fakeClient{id: "user-a"}

	orch.HandleFindGame(context.Background(), client, findGameEnvelope(`{"rating":15}`))

	assert.Empty(t, client.sent)
	assert.Empty(t, prov.matches)
}
