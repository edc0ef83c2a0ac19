package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a betting session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// ActionKind defines the betting actions a participant can take.
type ActionKind string

const (
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
	ActionFold  ActionKind = "fold"
)

// ShortIDLength is the number of leading id characters shared with players.
const ShortIDLength = 6

// Session represents one betting-round game instance with fixed seating
// and blinds. StateVersion increases by exactly one on every authoritative
// mutation and is the deduplication key for all downstream consumers.
type Session struct {
	ID               uuid.UUID     `json:"id"`
	Name             string        `json:"name"`
	HostID           uuid.UUID     `json:"host_id"`
	Participants     []Participant `json:"participants"`
	SmallBlind       int64         `json:"small_blind"`
	BigBlind         int64         `json:"big_blind"`
	Pot              int64         `json:"pot"`
	CurrentBet       int64         `json:"current_bet"`
	CurrentTurnIndex int           `json:"current_turn_index"`
	Status           SessionStatus `json:"status"`
	StateVersion     int64         `json:"state_version"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ShortID returns the human-shareable prefix of the full session id.
func (s *Session) ShortID() string {
	return strings.ToUpper(s.ID.String()[:ShortIDLength])
}

// Clone returns a deep copy of the session. Repositories and the engine
// hand out clones so a reader never observes a half-applied mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	return &out
}

// FindParticipant returns the index and participant for a user id, or
// (-1, nil) when the user is not seated.
func (s *Session) FindParticipant(userID uuid.UUID) (int, *Participant) {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i, &s.Participants[i]
		}
	}
	return -1, nil
}

// ActiveCount returns the number of participants that have not folded.
func (s *Session) ActiveCount() int {
	n := 0
	for i := range s.Participants {
		if s.Participants[i].IsActive {
			n++
		}
	}
	return n
}
