package table

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
)

// Engine holds the pure betting state-transition logic. It never touches
// the repository and never retries: a rejection leaves the input session
// untouched and does not bump the state version.
type Engine struct{}

// NewEngine creates a new betting engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ActionResult carries the post-mutation snapshot plus the context the
// synchronization layer needs to describe the transition.
type ActionResult struct {
	Session           *models.Session
	Event             models.ActionEvent
	PreviousTurnIndex int
	Completed         bool
}

// Apply validates an action against the session and returns a new snapshot
// with the mutation applied. Preconditions are checked in order and the
// first failure wins. Amount is the new total current bet for raises and
// ignored for every other action.
func (e *Engine) Apply(session *models.Session, actorID uuid.UUID, kind models.ActionKind, amount int64) (*ActionResult, error) {
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("apply %s: %w", kind, ErrNotActive)
	}

	idx, actor := session.FindParticipant(actorID)
	if actor == nil || idx != session.CurrentTurnIndex {
		return nil, fmt.Errorf("apply %s: %w", kind, ErrNotYourTurn)
	}

	switch kind {
	case models.ActionCall:
		if actor.ChipBalance < session.CurrentBet {
			return nil, fmt.Errorf("call %d with balance %d: %w", session.CurrentBet, actor.ChipBalance, ErrInsufficientChips)
		}
	case models.ActionRaise:
		if amount < 2*session.CurrentBet {
			return nil, fmt.Errorf("raise to %d below minimum %d: %w", amount, 2*session.CurrentBet, ErrInvalidRaise)
		}
		if amount > actor.ChipBalance {
			return nil, fmt.Errorf("raise to %d with balance %d: %w", amount, actor.ChipBalance, ErrInsufficientChips)
		}
	case models.ActionCheck, models.ActionFold:
		// No balance precondition.
	default:
		return nil, fmt.Errorf("unknown action kind %q: %w", kind, ErrInvalidRaise)
	}

	next := session.Clone()
	prevTurn := next.CurrentTurnIndex
	acting := &next.Participants[idx]

	switch kind {
	case models.ActionCheck:
		// No balance change.
	case models.ActionCall:
		next.Pot += next.CurrentBet
		acting.ChipBalance -= next.CurrentBet
	case models.ActionRaise:
		next.Pot += amount
		acting.ChipBalance -= amount
		next.CurrentBet = amount
	case models.ActionFold:
		acting.IsActive = false
	}

	completed := false
	if kind == models.ActionFold && next.ActiveCount() == 1 {
		// Early win: the last active participant takes the round.
		next.Status = models.SessionStatusCompleted
		completed = true
	}

	next.CurrentTurnIndex = advanceTurn(next, prevTurn)
	next.StateVersion++
	next.UpdatedAt = time.Now().UTC()

	return &ActionResult{
		Session: next,
		Event: models.ActionEvent{
			SessionID:    next.ID,
			Kind:         kind,
			Amount:       amount,
			ActorID:      actorID,
			StateVersion: next.StateVersion,
			Timestamp:    next.UpdatedAt,
		},
		PreviousTurnIndex: prevTurn,
		Completed:         completed,
	}, nil
}

// advanceTurn scans seating order from the seat after `from`, wrapping and
// skipping folded participants. Falls back to `from` if nobody is active,
// which only happens after the early-win check already completed the
// session.
func advanceTurn(s *models.Session, from int) int {
	n := len(s.Participants)
	if n == 0 {
		return 0
	}
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if s.Participants[idx].IsActive {
			return idx
		}
	}
	return from
}
