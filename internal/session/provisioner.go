package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soratane/duelis-backend/internal/events"
	"github.com/soratane/duelis-backend/internal/pkg/metrics"
	"github.com/soratane/duelis-backend/internal/protocol"
)

// Match is one formed pairing handed over by the orchestrator. The
// initiator is connected to this process; the opponent may be anywhere.
type Match struct {
	GameID      string
	InitiatorID string
	OpponentID  string
}

// SessionService creates game sessions and reports their endpoints.
type SessionService interface {
	Create(ctx context.Context) (string, error)
	Endpoint(ctx context.Context, sessionID string) (Endpoint, error)
}

// LocalSender delivers a message to a player connected to this process.
type LocalSender interface {
	Send(playerID string, message any) bool
}

// RelayPublisher broadcasts a message to players on any process.
type RelayPublisher interface {
	Publish(ctx context.Context, message any, recipients ...string) error
}

// Provisioner runs the per-match session workflow: create the session,
// poll until it is reachable or the attempt budget is spent, then notify
// both players through the local gateway and the relay bus. Every match
// gets its own goroutine and cancellation token; one match's failure never
// touches another.
type Provisioner struct {
	service      SessionService
	local        LocalSender
	relay        RelayPublisher
	feed         *events.Publisher
	pollInterval time.Duration
	maxAttempts  int

	baseCtx context.Context

	mu     sync.Mutex
	active map[*watch]struct{}
}

// watch tracks which participants of an in-flight match are still
// connected here, so the poll loop can stop once nobody is left to tell.
// Participants on other processes stay in the set forever; the attempt
// budget bounds those loops instead.
type watch struct {
	cancel    context.CancelFunc
	mu        sync.Mutex
	remaining map[string]struct{}
}

func NewProvisioner(service SessionService, local LocalSender, relay RelayPublisher, feed *events.Publisher, pollInterval time.Duration, maxAttempts int) *Provisioner {
	return &Provisioner{
		service:      service,
		local:        local,
		relay:        relay,
		feed:         feed,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		baseCtx:      context.Background(),
		active:       make(map[*watch]struct{}),
	}
}

// Start binds in-flight match workflows to the process lifetime so they
// are all cancelled together at shutdown.
func (p *Provisioner) Start(ctx context.Context) {
	p.baseCtx = ctx
}

// Provision launches the session workflow for one match and returns
// immediately.
func (p *Provisioner) Provision(m Match) {
	ctx, cancel := context.WithCancel(p.baseCtx)
	w := &watch{
		cancel: cancel,
		remaining: map[string]struct{}{
			m.InitiatorID: {},
			m.OpponentID:  {},
		},
	}

	p.mu.Lock()
	p.active[w] = struct{}{}
	p.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			p.mu.Lock()
			delete(p.active, w)
			p.mu.Unlock()
		}()
		p.run(ctx, m)
	}()
}

// PlayerDisconnected tells every in-flight match that a locally held
// player dropped. A match whose participants are all gone has its poll
// loop cancelled early.
func (p *Provisioner) PlayerDisconnected(playerID string) {
	p.mu.Lock()
	watches := make([]*watch, 0, len(p.active))
	for w := range p.active {
		watches = append(watches, w)
	}
	p.mu.Unlock()

	for _, w := range watches {
		w.mu.Lock()
		delete(w.remaining, playerID)
		abandoned := len(w.remaining) == 0
		w.mu.Unlock()
		if abandoned {
			w.cancel()
		}
	}
}

func (p *Provisioner) run(ctx context.Context, m Match) {
	slog.Info("Creating game session", "gameID", m.GameID)

	sessionID, err := p.service.Create(ctx)
	if err != nil {
		// The match is abandoned with no player notification; both clients
		// time out on their own. Known UX gap.
		slog.Error("Failed to create session, abandoning match", "gameID", m.GameID, "error", err)
		metrics.SessionCreateFailuresTotal.Inc()
		p.feed.Publish(ctx, events.TypeSessionFailed, m.GameID,
			events.SessionFailed{GameID: m.GameID, Reason: "create failed"})
		return
	}
	slog.Info("Session created, polling for endpoint", "gameID", m.GameID, "sessionID", sessionID)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			slog.Info("Session polling cancelled", "gameID", m.GameID, "attempt", attempt)
			return
		case <-ticker.C:
		}

		ep, err := p.service.Endpoint(ctx, sessionID)
		if err != nil {
			// Not ready yet; the next tick retries. Creation is never redone.
			continue
		}

		slog.Info("Session ready", "gameID", m.GameID, "ip", ep.IP, "port", ep.Port, "attempt", attempt)
		metrics.SessionsReadyTotal.Inc()
		p.notify(m, protocol.Message{
			Type: protocol.TypeGameFound,
			Data: protocol.GameFoundData{
				GameID:    m.GameID,
				SessionID: sessionID,
				IP:        ep.IP,
				Port:      ep.Port,
			},
		})
		p.feed.Publish(ctx, events.TypeSessionReady, m.GameID,
			events.SessionReady{GameID: m.GameID, SessionID: sessionID, IP: ep.IP, Port: ep.Port})
		return
	}

	slog.Warn("Session never became ready, giving up", "gameID", m.GameID, "attempts", p.maxAttempts)
	metrics.SessionsExhaustedTotal.Inc()
	p.notify(m, protocol.Message{
		Type: protocol.TypeSessionNotFound,
		Data: protocol.SessionNotFoundData{GameID: m.GameID},
	})
	p.feed.Publish(context.WithoutCancel(ctx), events.TypeSessionFailed, m.GameID,
		events.SessionFailed{GameID: m.GameID, Reason: "poll attempts exhausted"})
}

// notify sends one message to the initiator through the local gateway and
// to the opponent through the relay bus, since the opponent may be
// connected to a different process.
func (p *Provisioner) notify(m Match, msg protocol.Message) {
	if !p.local.Send(m.InitiatorID, msg) {
		slog.Warn("Initiator no longer connected here", "gameID", m.GameID, "playerID", m.InitiatorID)
	}
	if err := p.relay.Publish(context.WithoutCancel(p.baseCtx), msg, m.OpponentID); err != nil {
		slog.Error("Failed to relay session notification", "gameID", m.GameID, "playerID", m.OpponentID, "error", err)
	}
}
