package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablestakes/go/internal/events"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/rs/zerolog/log"
)

// SessionFetcher pulls the authoritative session snapshot, normally over
// the gateway's state endpoint.
type SessionFetcher interface {
	GetSession(ctx context.Context, idOrShort string) (*models.Session, error)
}

// Config holds client reconciler settings.
type Config struct {
	// CoalesceWindow batches bursts of notifications into one UI-visible
	// update. Turn changes bypass it.
	CoalesceWindow time.Duration
	// PullInterval is the periodic refresh backstop, independent of the
	// server-side broadcaster.
	PullInterval time.Duration
}

// DefaultConfig returns the default reconciler cadence.
func DefaultConfig() Config {
	return Config{
		CoalesceWindow: 200 * time.Millisecond,
		PullInterval:   5 * time.Second,
	}
}

// Reconciler maintains a local mirror of one session. It applies incoming
// notifications idempotently (state versions at or below the last applied
// one are no-ops), coalesces bursts, keeps a two-tier predicted/confirmed
// state for optimistic local actions, and periodically pulls the
// authoritative snapshot as a backstop. There is no conflict resolution
// beyond last authoritative write wins: the server is the sole writer.
type Reconciler struct {
	sessionID uuid.UUID
	fetcher   SessionFetcher
	engine    *table.Engine
	clock     clockwork.Clock
	cfg       Config
	onUpdate  func(*models.Session)

	mu             sync.Mutex
	confirmed      *models.Session
	predicted      *models.Session
	lastApplied    int64
	pending        *models.Session
	flushScheduled bool
	staleDrops     int
}

// NewReconciler creates a reconciler for one session. onUpdate is invoked
// with each UI-visible snapshot; it may be nil.
func NewReconciler(sessionID uuid.UUID, fetcher SessionFetcher, clock clockwork.Clock, cfg Config, onUpdate func(*models.Session)) *Reconciler {
	return &Reconciler{
		sessionID: sessionID,
		fetcher:   fetcher,
		engine:    table.NewEngine(),
		clock:     clock,
		cfg:       cfg,
		onUpdate:  onUpdate,
	}
}

// Apply folds one incoming notification into the mirror. Safe under
// duplicate and out-of-order delivery.
func (r *Reconciler) Apply(ctx context.Context, n *events.Notification) {
	switch n.Kind {
	case events.KindRequestRefresh, events.KindForceUIRefresh:
		// Last-resort pull triggers carry no snapshot.
		if err := r.Refresh(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", n.SessionID).Msg("refresh trigger failed")
		}
		return
	}
	if n.Session == nil {
		return
	}

	r.mu.Lock()
	if n.StateVersion <= r.lastApplied {
		r.staleDrops++
		r.mu.Unlock()
		return
	}

	r.confirmed = n.Session.Clone()
	r.lastApplied = n.StateVersion
	// Any authoritative message wholesale discards predicted state.
	r.predicted = nil

	if n.Kind == events.KindTurnChanged {
		// Turn changes are latency-sensitive; surface immediately.
		snap := r.confirmed
		r.pending = nil
		r.mu.Unlock()
		r.surface(snap)
		return
	}

	r.pending = r.confirmed
	if !r.flushScheduled {
		r.flushScheduled = true
		r.clock.AfterFunc(r.cfg.CoalesceWindow, r.flush)
	}
	r.mu.Unlock()
}

func (r *Reconciler) flush() {
	r.mu.Lock()
	snap := r.pending
	r.pending = nil
	r.flushScheduled = false
	r.mu.Unlock()

	if snap != nil {
		r.surface(snap)
	}
}

// PredictAction applies an optimistic local mutation for the user's own
// action, predicting pot/balance/turn changes. The prediction is
// unconditionally overwritten by the next authoritative notification.
func (r *Reconciler) PredictAction(actorID uuid.UUID, kind models.ActionKind, amount int64) {
	r.mu.Lock()
	base := r.predicted
	if base == nil {
		base = r.confirmed
	}
	if base == nil {
		r.mu.Unlock()
		return
	}

	res, err := r.engine.Apply(base, actorID, kind, amount)
	if err != nil {
		// The server will reject it too; nothing to predict.
		r.mu.Unlock()
		return
	}
	r.predicted = res.Session
	snap := r.predicted
	r.mu.Unlock()

	r.surface(snap)
}

// Snapshot returns the current view: predicted state when an optimistic
// action is in flight, confirmed state otherwise.
func (r *Reconciler) Snapshot() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.predicted != nil {
		return r.predicted.Clone()
	}
	return r.confirmed.Clone()
}

// LastApplied returns the highest state version applied so far.
func (r *Reconciler) LastApplied() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastApplied
}

// StaleDrops returns how many stale or duplicate notifications were
// ignored. Repeated spikes here are the trigger for a force resync.
func (r *Reconciler) StaleDrops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.staleDrops
}

// Refresh pulls the authoritative snapshot and applies it through the same
// idempotent path as a pushed notification.
func (r *Reconciler) Refresh(ctx context.Context) error {
	session, err := r.fetcher.GetSession(ctx, r.sessionID.String())
	if err != nil {
		return fmt.Errorf("pull session: %w", err)
	}

	r.Apply(ctx, &events.Notification{
		SessionID:    session.ID.String(),
		Kind:         events.KindGameUpdate,
		Timestamp:    r.clock.Now(),
		StateVersion: session.StateVersion,
		Session:      session,
		Origin:       events.OriginPeriodicRefresh,
	})
	return nil
}

// Run drives the periodic pull backstop until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := r.Refresh(ctx); err != nil {
				log.Warn().Err(err).Str("session_id", r.sessionID.String()).Msg("periodic pull failed")
			}
		}
	}
}

func (r *Reconciler) surface(snap *models.Session) {
	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}
