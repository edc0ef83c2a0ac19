package events

import (
	"time"

	"github.com/mcdev12/tablestakes/go/internal/models"
)

// Kind tags a real-time notification. Several kinds carry the same session
// snapshot on purpose: the transport gives no delivery guarantee, so the
// broadcaster substitutes redundancy for acknowledgment.
type Kind string

const (
	KindGameUpdate      Kind = "game_update"
	KindActionPerformed Kind = "game_action_performed"
	KindTurnChanged     Kind = "turn_changed"
	KindGameStarted     Kind = "game_started"
	KindGameEnded       Kind = "game_ended"
	KindPlayerJoined    Kind = "player_joined"
	KindPlayerLeft      Kind = "player_left"
	KindPlayerKicked    Kind = "player_kicked"
	KindRequestRefresh  Kind = "request_refresh"
	KindForceUIRefresh  Kind = "force_ui_refresh"
)

// Origin values for game_update notifications.
const (
	OriginMutation        = "mutation"
	OriginPeriodicRefresh = "periodic_refresh"
	OriginForceResync     = "force_resync"
	OriginResend          = "resend"
)

// Notification is the wire unit delivered to subscribers. Consumers must
// treat it as at-least-once and possibly out of order: a notification whose
// StateVersion is not strictly greater than the last applied one is a no-op.
type Notification struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Kind         Kind            `json:"kind"`
	Timestamp    time.Time       `json:"timestamp"`
	StateVersion int64           `json:"state_version,omitempty"`
	Session      *models.Session `json:"session,omitempty"`
	Origin       string          `json:"origin,omitempty"`

	// game_action_performed fields
	ActionType models.ActionKind `json:"action_type,omitempty"`
	Amount     int64             `json:"amount,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`

	// turn_changed / game_action_performed fields
	PreviousTurnIndex int `json:"previous_turn_index"`
	CurrentTurnIndex  int `json:"current_turn_index"`

	// player_kicked fields
	KickedID  string `json:"kicked_id,omitempty"`
	RemovedBy string `json:"removed_by,omitempty"`
}
