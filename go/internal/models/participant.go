package models

import "github.com/google/uuid"

// Participant is one seated identity in a session. Position is fixed at
// join time and never rebuilt, even when other participants are removed.
type Participant struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ChipBalance int64     `json:"chip_balance"`
	IsActive    bool      `json:"is_active"`
	Position    int       `json:"position"`
}
