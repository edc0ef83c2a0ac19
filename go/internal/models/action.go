package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionEvent describes a single applied betting action. It is ephemeral:
// it exists only to feed the synchronization layer and is never persisted.
type ActionEvent struct {
	SessionID    uuid.UUID  `json:"session_id"`
	Kind         ActionKind `json:"kind"`
	Amount       int64      `json:"amount,omitempty"`
	ActorID      uuid.UUID  `json:"actor_id"`
	StateVersion int64      `json:"state_version"`
	Timestamp    time.Time  `json:"timestamp"`
}
