package gamesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablestakes/go/internal/events"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionFetcher defines what the reconciliation loop needs from the
// session layer.
type SessionFetcher interface {
	GetSession(ctx context.Context, idOrShort string) (*models.Session, error)
}

// SubscriberCounter reports how many subscribers a session currently has.
// Implemented by the gateway connection manager.
type SubscriberCounter interface {
	SubscriberCount(sessionID uuid.UUID) int
}

// LoopConfig holds the reconciliation loop settings.
type LoopConfig struct {
	// Interval is how often tracked sessions are inspected.
	Interval time.Duration
	// StalenessThreshold is the maximum age of the last known-good refresh
	// before the loop re-fetches and re-broadcasts the authoritative state.
	StalenessThreshold time.Duration
}

// DefaultLoopConfig returns the default reconciliation cadence.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Interval:           2 * time.Second,
		StalenessThreshold: 5 * time.Second,
	}
}

// Loop is the per-session periodic reconciliation process. A session is
// tracked while it has subscribers and leaves the loop when its subscriber
// count drops to zero. If no fresh broadcast has been seen within the
// staleness threshold, the loop re-fetches the authoritative snapshot and
// re-broadcasts it tagged periodic_refresh.
type Loop struct {
	fetcher     SessionFetcher
	broadcaster *Broadcaster
	counter     SubscriberCounter
	clock       clockwork.Clock
	cfg         LoopConfig

	mu      sync.Mutex
	tracked map[uuid.UUID]time.Time // session id -> last known-good refresh
}

// NewLoop creates a reconciliation loop. The broadcaster's freshness hook
// is wired here so every outgoing snapshot counts as a refresh.
func NewLoop(fetcher SessionFetcher, broadcaster *Broadcaster, counter SubscriberCounter, clock clockwork.Clock, cfg LoopConfig) *Loop {
	l := &Loop{
		fetcher:     fetcher,
		broadcaster: broadcaster,
		counter:     counter,
		clock:       clock,
		cfg:         cfg,
		tracked:     make(map[uuid.UUID]time.Time),
	}
	broadcaster.SetFreshness(l.MarkFresh)
	return l
}

// Track enrolls a session in the loop. Called when its first subscriber
// connects. Re-tracking an existing session is a no-op.
func (l *Loop) Track(sessionID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tracked[sessionID]; !ok {
		l.tracked[sessionID] = l.clock.Now()
		log.Debug().Str("session_id", sessionID.String()).Msg("session tracked for reconciliation")
	}
}

// Untrack removes a session from the loop.
func (l *Loop) Untrack(sessionID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tracked, sessionID)
}

// MarkFresh records that an authoritative snapshot for the session was just
// delivered, resetting its staleness clock.
func (l *Loop) MarkFresh(sessionID string) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tracked[id]; ok {
		l.tracked[id] = l.clock.Now()
	}
}

// TrackedCount returns how many sessions the loop currently watches.
func (l *Loop) TrackedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tracked)
}

// Run drives the loop until the context is cancelled.
func (l *Loop) Run(ctx context.Context) {
	log.Info().
		Dur("interval", l.cfg.Interval).
		Dur("staleness_threshold", l.cfg.StalenessThreshold).
		Msg("reconciliation loop started")

	ticker := l.clock.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconciliation loop shutting down")
			return
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	now := l.clock.Now()

	l.mu.Lock()
	stale := make([]uuid.UUID, 0)
	for id, last := range l.tracked {
		if l.counter != nil && l.counter.SubscriberCount(id) == 0 {
			// Last subscriber left; this is the loop's lifecycle boundary.
			delete(l.tracked, id)
			log.Debug().Str("session_id", id.String()).Msg("session untracked, no subscribers")
			continue
		}
		if now.Sub(last) > l.cfg.StalenessThreshold {
			stale = append(stale, id)
		}
	}
	l.mu.Unlock()

	for _, id := range stale {
		if err := l.refresh(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id.String()).Msg("periodic refresh failed")
		}
	}
}

func (l *Loop) refresh(ctx context.Context, sessionID uuid.UUID) error {
	session, err := l.fetcher.GetSession(ctx, sessionID.String())
	if err != nil {
		return fmt.Errorf("fetch for refresh: %w", err)
	}
	l.broadcaster.BroadcastSnapshot(ctx, session, events.OriginPeriodicRefresh)
	return nil
}

// ForceResync serves an explicit resync request after repeated
// client-observed inconsistency: it fetches the authoritative state and
// re-emits the full notification pattern. Re-establishing the subscriber's
// connection is the gateway's part of the contract.
func (l *Loop) ForceResync(ctx context.Context, sessionID uuid.UUID) error {
	session, err := l.fetcher.GetSession(ctx, sessionID.String())
	if err != nil {
		return fmt.Errorf("fetch for force resync: %w", err)
	}

	l.Track(sessionID)
	l.broadcaster.BroadcastResync(ctx, session)

	log.Info().
		Str("session_id", sessionID.String()).
		Int64("state_version", session.StateVersion).
		Msg("forced resync broadcast")
	return nil
}
