package table

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/events"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SyncBroadcaster defines what the session app needs from the sync layer.
// Both calls are fire-and-forget: they must never block a mutation and
// never retry a rejected action.
type SyncBroadcaster interface {
	// BroadcastAction fans out the triple-notification pattern for an
	// applied betting action, with the redundant resend schedule.
	BroadcastAction(ctx context.Context, res *ActionResult)
	// BroadcastLifecycle fans out a session lifecycle notification
	// (started, ended, joined, left, kicked).
	BroadcastLifecycle(ctx context.Context, info LifecycleInfo)
}

// LifecycleInfo describes a non-action session change for broadcasting.
type LifecycleInfo struct {
	Kind     events.Kind
	Session  *models.Session
	ActorID  uuid.UUID
	TargetID uuid.UUID
}

// AppConfig holds session app settings.
type AppConfig struct {
	// DefaultBuyIn is the chip balance seeded for every joining participant.
	DefaultBuyIn int64
}

// DefaultAppConfig returns the default session app configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{DefaultBuyIn: 1000}
}

// App handles session business logic. It is the single writer per session:
// mutations are serialized per session id, so there is no write-write race
// on a session's fields. Sessions proceed independently in parallel.
type App struct {
	repo      SessionRepository
	engine    *Engine
	registry  *Registry
	broadcast SyncBroadcaster
	cfg       AppConfig

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// NewApp creates a new session App.
func NewApp(repo SessionRepository, registry *Registry, broadcast SyncBroadcaster, cfg AppConfig) *App {
	return &App{
		repo:      repo,
		engine:    NewEngine(),
		registry:  registry,
		broadcast: broadcast,
		cfg:       cfg,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// WarmRegistry loads known session ids into the short-id registry. Completed
// sessions stay out of active tracking.
func (a *App) WarmRegistry(ctx context.Context) error {
	ids, err := a.repo.ListSessionIDs(ctx, models.SessionStatusPending, models.SessionStatusActive)
	if err != nil {
		return fmt.Errorf("failed to warm registry: %w", err)
	}
	for _, id := range ids {
		a.registry.Add(id)
	}
	log.Info().Int("sessions", len(ids)).Msg("short-id registry warmed")
	return nil
}

// CreateSessionRequest holds parameters for creating a session.
type CreateSessionRequest struct {
	Name       string
	SmallBlind int64
	BigBlind   int64
	HostID     uuid.UUID
	HostName   string
}

// CreateSession constructs a pending session with the host seated at
// position 0 and returns the session plus its short id.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, string, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, "", fmt.Errorf("name is required")
	}
	if req.SmallBlind <= 0 || req.BigBlind <= req.SmallBlind {
		return nil, "", fmt.Errorf("blinds must satisfy 0 < small_blind < big_blind")
	}
	if req.HostID == uuid.Nil {
		return nil, "", fmt.Errorf("host_id is required")
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:     uuid.New(),
		Name:   req.Name,
		HostID: req.HostID,
		Participants: []models.Participant{{
			UserID:      req.HostID,
			DisplayName: req.HostName,
			ChipBalance: a.cfg.DefaultBuyIn,
			IsActive:    true,
			Position:    0,
		}},
		SmallBlind:   req.SmallBlind,
		BigBlind:     req.BigBlind,
		Status:       models.SessionStatusPending,
		StateVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := a.repo.CreateSession(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	a.registry.Add(session.ID)

	log.Info().
		Str("session_id", session.ID.String()).
		Str("short_id", session.ShortID()).
		Int64("small_blind", req.SmallBlind).
		Int64("big_blind", req.BigBlind).
		Msg("session created")

	return session, session.ShortID(), nil
}

// JoinSession appends a participant at the next free position. A duplicate
// join is tolerated: the existing session is returned with alreadyJoined
// set instead of an error, so flaky clients can resubmit safely.
func (a *App) JoinSession(ctx context.Context, idOrShort string, userID uuid.UUID, displayName string) (*models.Session, bool, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, false, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if _, existing := session.FindParticipant(userID); existing != nil {
		return session, true, nil
	}
	if session.Status != models.SessionStatusPending {
		return nil, false, fmt.Errorf("join after start: %w", ErrNotActive)
	}

	next := session.Clone()
	next.Participants = append(next.Participants, models.Participant{
		UserID:      userID,
		DisplayName: displayName,
		ChipBalance: a.cfg.DefaultBuyIn,
		IsActive:    true,
		Position:    nextPosition(next.Participants),
	})
	next.StateVersion++
	next.UpdatedAt = time.Now().UTC()

	if err := a.repo.UpdateSession(ctx, next); err != nil {
		return nil, false, fmt.Errorf("failed to persist join: %w", err)
	}

	a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
		Kind:    events.KindPlayerJoined,
		Session: next,
		ActorID: userID,
	})
	return next, false, nil
}

// StartSession transitions a pending session to active. Host-only, requires
// at least two participants. The current bet is initialized to the big
// blind and the turn pointer to seat 0.
func (a *App) StartSession(ctx context.Context, idOrShort string, callerID uuid.UUID) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.HostID != callerID {
		return nil, fmt.Errorf("start requires host: %w", ErrUnauthorized)
	}
	if session.Status != models.SessionStatusPending {
		return nil, fmt.Errorf("start on %s session: %w", session.Status, ErrNotActive)
	}
	if len(session.Participants) < 2 {
		return nil, fmt.Errorf("start requires at least 2 participants, have %d", len(session.Participants))
	}

	next := session.Clone()
	next.Status = models.SessionStatusActive
	next.CurrentBet = next.BigBlind
	next.CurrentTurnIndex = 0
	next.StateVersion++
	next.UpdatedAt = time.Now().UTC()

	if err := a.repo.UpdateSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist start: %w", err)
	}

	log.Info().
		Str("session_id", next.ID.String()).
		Int64("state_version", next.StateVersion).
		Msg("session started")

	a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
		Kind:    events.KindGameStarted,
		Session: next,
		ActorID: callerID,
	})
	return next, nil
}

// PerformAction delegates to the betting engine, persists the result and
// triggers the redundant broadcast fan-out. Engine rejections are pure and
// surface synchronously without a version bump or any broadcast.
func (a *App) PerformAction(ctx context.Context, idOrShort string, actorID uuid.UUID, kind models.ActionKind, amount int64) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := a.engine.Apply(session, actorID, kind, amount)
	if err != nil {
		return nil, err
	}

	if err := a.repo.UpdateSession(ctx, res.Session); err != nil {
		return nil, fmt.Errorf("failed to persist action: %w", err)
	}

	log.Info().
		Str("session_id", id.String()).
		Str("action", string(kind)).
		Str("actor_id", actorID.String()).
		Int64("amount", amount).
		Int64("state_version", res.Session.StateVersion).
		Bool("completed", res.Completed).
		Msg("action applied")

	a.broadcast.BroadcastAction(ctx, res)
	if res.Completed {
		a.registry.Remove(id)
		a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
			Kind:    events.KindGameEnded,
			Session: res.Session,
			ActorID: actorID,
		})
	}
	return res.Session, nil
}

// EndSession completes an active session. Host-only.
func (a *App) EndSession(ctx context.Context, idOrShort string, callerID uuid.UUID) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.HostID != callerID {
		return nil, fmt.Errorf("end requires host: %w", ErrUnauthorized)
	}
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("end on %s session: %w", session.Status, ErrNotActive)
	}

	next := session.Clone()
	next.Status = models.SessionStatusCompleted
	next.StateVersion++
	next.UpdatedAt = time.Now().UTC()

	if err := a.repo.UpdateSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist end: %w", err)
	}
	a.registry.Remove(id)

	a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
		Kind:    events.KindGameEnded,
		Session: next,
		ActorID: callerID,
	})
	return next, nil
}

// GetSession fetches a session by full or short id. This is the only read
// path that resolves short-id ambiguity.
func (a *App) GetSession(ctx context.Context, idOrShort string) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}
	return a.repo.GetSession(ctx, id)
}

// ValidateShortID reports whether a short id resolves to a known session.
func (a *App) ValidateShortID(shortID string) (uuid.UUID, bool) {
	return a.registry.Resolve(shortID)
}

// RemoveParticipant removes a participant from a session. Host-only. The
// positions of remaining participants are preserved, never rebuilt.
func (a *App) RemoveParticipant(ctx context.Context, idOrShort string, callerID, targetID uuid.UUID) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.HostID != callerID {
		return nil, fmt.Errorf("remove requires host: %w", ErrUnauthorized)
	}

	next, err := a.removeFromSeating(session, targetID)
	if err != nil {
		return nil, err
	}

	if err := a.repo.UpdateSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist removal: %w", err)
	}
	if next.Status == models.SessionStatusCompleted {
		a.registry.Remove(id)
	}

	a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
		Kind:     events.KindPlayerKicked,
		Session:  next,
		ActorID:  callerID,
		TargetID: targetID,
	})
	return next, nil
}

// LeaveSession handles a voluntary leave. While pending the leaver is
// removed from seating; while active the seat folds instead, so the pot and
// positions stay intact.
func (a *App) LeaveSession(ctx context.Context, idOrShort string, userID uuid.UUID) (*models.Session, error) {
	id, err := a.resolveID(idOrShort)
	if err != nil {
		return nil, err
	}

	unlock := a.lockSession(id)
	defer unlock()

	session, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	var next *models.Session
	switch session.Status {
	case models.SessionStatusPending:
		next, err = a.removeFromSeating(session, userID)
		if err != nil {
			return nil, err
		}
	case models.SessionStatusActive:
		idx, p := session.FindParticipant(userID)
		if p == nil {
			return nil, fmt.Errorf("participant %s: %w", userID, ErrNotFound)
		}
		next = session.Clone()
		next.Participants[idx].IsActive = false
		if next.ActiveCount() <= 1 {
			next.Status = models.SessionStatusCompleted
		}
		if next.CurrentTurnIndex == idx {
			next.CurrentTurnIndex = advanceTurn(next, idx)
		}
		next.StateVersion++
		next.UpdatedAt = time.Now().UTC()
	default:
		return nil, fmt.Errorf("leave on %s session: %w", session.Status, ErrNotActive)
	}

	if err := a.repo.UpdateSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to persist leave: %w", err)
	}
	if next.Status == models.SessionStatusCompleted {
		a.registry.Remove(id)
	}

	a.broadcast.BroadcastLifecycle(ctx, LifecycleInfo{
		Kind:    events.KindPlayerLeft,
		Session: next,
		ActorID: userID,
	})
	return next, nil
}

// removeFromSeating drops a participant while preserving everyone else's
// position. The turn pointer is re-aimed when the removed seat held or
// preceded it.
func (a *App) removeFromSeating(session *models.Session, targetID uuid.UUID) (*models.Session, error) {
	idx, p := session.FindParticipant(targetID)
	if p == nil {
		return nil, fmt.Errorf("participant %s: %w", targetID, ErrNotFound)
	}

	next := session.Clone()
	next.Participants = append(next.Participants[:idx], next.Participants[idx+1:]...)

	if next.Status == models.SessionStatusActive {
		switch {
		case len(next.Participants) == 0:
			next.Status = models.SessionStatusCompleted
			next.CurrentTurnIndex = 0
		case idx < next.CurrentTurnIndex:
			next.CurrentTurnIndex--
		case idx == next.CurrentTurnIndex:
			if next.CurrentTurnIndex >= len(next.Participants) {
				next.CurrentTurnIndex = 0
			}
			if !next.Participants[next.CurrentTurnIndex].IsActive {
				next.CurrentTurnIndex = advanceTurn(next, next.CurrentTurnIndex)
			}
		}
		if next.Status == models.SessionStatusActive && next.ActiveCount() <= 1 {
			next.Status = models.SessionStatusCompleted
		}
	} else if next.CurrentTurnIndex >= len(next.Participants) {
		next.CurrentTurnIndex = 0
	}

	next.StateVersion++
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// resolveID parses a full uuid or resolves a short id through the registry.
func (a *App) resolveID(idOrShort string) (uuid.UUID, error) {
	if id, err := uuid.Parse(idOrShort); err == nil {
		return id, nil
	}
	if id, ok := a.registry.Resolve(idOrShort); ok {
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("id %q: %w", idOrShort, ErrNotFound)
}

// lockSession serializes mutations for one session id.
func (a *App) lockSession(id uuid.UUID) func() {
	a.locksMu.Lock()
	mu, ok := a.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[id] = mu
	}
	a.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func nextPosition(participants []models.Participant) int {
	max := -1
	for i := range participants {
		if participants[i].Position > max {
			max = participants[i].Position
		}
	}
	return max + 1
}
