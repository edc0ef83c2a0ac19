package gamesync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablestakes/go/internal/events"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/rs/zerolog/log"
)

// BroadcasterConfig holds the redundancy schedule for the broadcaster.
type BroadcasterConfig struct {
	// ResendSchedule lists offsets from the initial emission at which the
	// same snapshot is re-sent, rotating notification kinds each tick.
	// After the last offset a request_refresh is emitted as the final
	// pull-based fallback.
	ResendSchedule []time.Duration
}

// DefaultBroadcasterConfig returns the default resend schedule.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		ResendSchedule: []time.Duration{
			200 * time.Millisecond,
			400 * time.Millisecond,
			600 * time.Millisecond,
			800 * time.Millisecond,
			1000 * time.Millisecond,
		},
	}
}

// Broadcaster fans out typed notifications after every authoritative
// mutation. The transport offers no delivery or ordering guarantee, so a
// single mutation is emitted as several notification kinds carrying the
// same snapshot, re-sent over a short backoff window. Consumers dedupe on
// state version, which makes the redundancy safe.
type Broadcaster struct {
	pub       EventPublisher
	clock     clockwork.Clock
	cfg       BroadcasterConfig
	markFresh func(sessionID string)
}

// NewBroadcaster creates a broadcaster over the given publisher.
func NewBroadcaster(pub EventPublisher, clock clockwork.Clock, cfg BroadcasterConfig) *Broadcaster {
	return &Broadcaster{pub: pub, clock: clock, cfg: cfg}
}

var _ table.SyncBroadcaster = (*Broadcaster)(nil)

// SetFreshness installs a hook invoked whenever a snapshot goes out, so the
// reconciliation loop can track last known-good refresh times.
func (b *Broadcaster) SetFreshness(fn func(sessionID string)) {
	b.markFresh = fn
}

// BroadcastAction emits the triple-notification pattern for an applied
// betting action: turn_changed, game_action_performed and game_update, all
// carrying the same snapshot and state version, followed by the resend
// schedule. Fire-and-forget; never blocks the caller on the schedule.
func (b *Broadcaster) BroadcastAction(ctx context.Context, res *table.ActionResult) {
	s := res.Session
	now := b.clock.Now()

	turn := b.newNotification(events.KindTurnChanged, s, now)
	turn.PreviousTurnIndex = res.PreviousTurnIndex
	turn.CurrentTurnIndex = s.CurrentTurnIndex

	action := b.newNotification(events.KindActionPerformed, s, now)
	action.ActionType = res.Event.Kind
	action.Amount = res.Event.Amount
	action.ActorID = res.Event.ActorID.String()
	action.PreviousTurnIndex = res.PreviousTurnIndex
	action.CurrentTurnIndex = s.CurrentTurnIndex

	update := b.newNotification(events.KindGameUpdate, s, now)
	update.Origin = events.OriginMutation

	batch := []*events.Notification{turn, action, update}
	for _, n := range batch {
		b.publish(ctx, n)
	}
	b.fresh(s.ID.String())

	// The schedule must outlive the request context that triggered the
	// mutation; only process shutdown stops it.
	go b.resendLoop(context.WithoutCancel(ctx), batch)
}

// BroadcastLifecycle emits a lifecycle notification plus a matching
// game_update. Start and end transitions also get the resend schedule:
// they bump the state version and losing them is as costly as losing an
// action. Roster changes are single-shot.
func (b *Broadcaster) BroadcastLifecycle(ctx context.Context, info table.LifecycleInfo) {
	s := info.Session
	now := b.clock.Now()

	n := b.newNotification(info.Kind, s, now)
	n.CurrentTurnIndex = s.CurrentTurnIndex
	if info.ActorID != uuid.Nil {
		n.ActorID = info.ActorID.String()
	}
	if info.Kind == events.KindPlayerKicked {
		n.KickedID = info.TargetID.String()
		n.RemovedBy = info.ActorID.String()
	}

	update := b.newNotification(events.KindGameUpdate, s, now)
	update.Origin = events.OriginMutation

	batch := []*events.Notification{n, update}
	for _, out := range batch {
		b.publish(ctx, out)
	}
	b.fresh(s.ID.String())

	if info.Kind == events.KindGameStarted || info.Kind == events.KindGameEnded {
		go b.resendLoop(context.WithoutCancel(ctx), batch)
	}
}

// BroadcastSnapshot emits a single game_update carrying the authoritative
// snapshot, tagged with its origin (periodic_refresh, force_resync).
func (b *Broadcaster) BroadcastSnapshot(ctx context.Context, s *models.Session, origin string) {
	n := b.newNotification(events.KindGameUpdate, s, b.clock.Now())
	n.Origin = origin
	n.CurrentTurnIndex = s.CurrentTurnIndex
	b.publish(ctx, n)
	b.fresh(s.ID.String())
}

// BroadcastResync emits the triple pattern for a forced resync plus a
// force_ui_refresh, then runs the resend schedule.
func (b *Broadcaster) BroadcastResync(ctx context.Context, s *models.Session) {
	now := b.clock.Now()

	turn := b.newNotification(events.KindTurnChanged, s, now)
	turn.PreviousTurnIndex = s.CurrentTurnIndex
	turn.CurrentTurnIndex = s.CurrentTurnIndex

	update := b.newNotification(events.KindGameUpdate, s, now)
	update.Origin = events.OriginForceResync

	force := b.newNotification(events.KindForceUIRefresh, s, now)

	batch := []*events.Notification{turn, update, force}
	for _, n := range batch {
		b.publish(ctx, n)
	}
	b.fresh(s.ID.String())

	go b.resendLoop(context.WithoutCancel(ctx), []*events.Notification{turn, update})
}

// resendLoop re-sends the batch over the configured schedule, rotating
// which kind goes out each tick, and closes with a request_refresh so
// subscribers that missed everything can pull the authoritative state.
func (b *Broadcaster) resendLoop(ctx context.Context, batch []*events.Notification) {
	if len(batch) == 0 || len(b.cfg.ResendSchedule) == 0 {
		return
	}

	sessionID := batch[0].SessionID
	version := batch[0].StateVersion

	var elapsed time.Duration
	for i, offset := range b.cfg.ResendSchedule {
		select {
		case <-ctx.Done():
			return
		case <-b.clock.After(offset - elapsed):
		}
		elapsed = offset

		src := batch[i%len(batch)]
		resend := *src
		resend.ID = uuid.NewString()
		resend.Timestamp = b.clock.Now()
		resend.Origin = events.OriginResend
		b.publish(ctx, &resend)
	}

	refresh := &events.Notification{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Kind:         events.KindRequestRefresh,
		Timestamp:    b.clock.Now(),
		StateVersion: version,
	}
	b.publish(ctx, refresh)
}

func (b *Broadcaster) newNotification(kind events.Kind, s *models.Session, now time.Time) *events.Notification {
	return &events.Notification{
		ID:           uuid.NewString(),
		SessionID:    s.ID.String(),
		Kind:         kind,
		Timestamp:    now,
		StateVersion: s.StateVersion,
		Session:      s,
	}
}

func (b *Broadcaster) publish(ctx context.Context, n *events.Notification) {
	if err := b.pub.Publish(ctx, n); err != nil {
		// Delivery loss is expected on this transport; the resend schedule
		// and periodic reconciliation cover it.
		log.Warn().
			Err(err).
			Str("session_id", n.SessionID).
			Str("kind", string(n.Kind)).
			Int64("state_version", n.StateVersion).
			Msg("failed to publish notification")
	}
}

func (b *Broadcaster) fresh(sessionID string) {
	if b.markFresh != nil {
		b.markFresh(sessionID)
	}
}
