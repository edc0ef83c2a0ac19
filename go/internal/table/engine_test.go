package table

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activeSession builds an ACTIVE session with blinds 5/10 and one seat per
// balance, turn on seat 0.
func activeSession(balances ...int64) (*models.Session, []uuid.UUID) {
	ids := make([]uuid.UUID, len(balances))
	participants := make([]models.Participant, len(balances))
	for i, bal := range balances {
		ids[i] = uuid.New()
		participants[i] = models.Participant{
			UserID:      ids[i],
			DisplayName: string(rune('A' + i)),
			ChipBalance: bal,
			IsActive:    true,
			Position:    i,
		}
	}
	return &models.Session{
		ID:               uuid.New(),
		Name:             "test table",
		HostID:           ids[0],
		Participants:     participants,
		SmallBlind:       5,
		BigBlind:         10,
		CurrentBet:       10,
		CurrentTurnIndex: 0,
		Status:           models.SessionStatusActive,
		StateVersion:     3,
	}, ids
}

func chipTotal(s *models.Session) int64 {
	total := s.Pot
	for i := range s.Participants {
		total += s.Participants[i].ChipBalance
	}
	return total
}

func TestEngineCheck(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100)

	res, err := engine.Apply(session, ids[0], models.ActionCheck, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Session.Pot)
	assert.Equal(t, int64(100), res.Session.Participants[0].ChipBalance)
	assert.Equal(t, 1, res.Session.CurrentTurnIndex)
	assert.Equal(t, 0, res.PreviousTurnIndex)
	assert.Equal(t, int64(4), res.Session.StateVersion)
	assert.False(t, res.Completed)
}

func TestEngineCall(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100)

	res, err := engine.Apply(session, ids[0], models.ActionCall, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.Session.Pot)
	assert.Equal(t, int64(90), res.Session.Participants[0].ChipBalance)
	assert.Equal(t, int64(10), res.Session.CurrentBet)
	assert.Equal(t, 1, res.Session.CurrentTurnIndex)
}

func TestEngineCallInsufficientChips(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(5, 100)

	_, err := engine.Apply(session, ids[0], models.ActionCall, 0)
	require.ErrorIs(t, err, ErrInsufficientChips)
}

func TestEngineRaise(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(200, 200)
	session.CurrentBet = 20

	res, err := engine.Apply(session, ids[0], models.ActionRaise, 40)
	require.NoError(t, err)

	assert.Equal(t, int64(40), res.Session.Pot)
	assert.Equal(t, int64(40), res.Session.CurrentBet)
	assert.Equal(t, int64(160), res.Session.Participants[0].ChipBalance)
	assert.Equal(t, 1, res.Session.CurrentTurnIndex)
}

func TestEngineRaiseBelowMinimum(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(200, 200)
	session.CurrentBet = 20

	_, err := engine.Apply(session, ids[0], models.ActionRaise, 30)
	require.ErrorIs(t, err, ErrInvalidRaise)

	// A rejection must leave the input untouched.
	assert.Equal(t, int64(3), session.StateVersion)
	assert.Equal(t, int64(20), session.CurrentBet)
	assert.Equal(t, int64(0), session.Pot)
}

func TestEngineRaiseBeyondBalance(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(30, 200)
	session.CurrentBet = 20

	_, err := engine.Apply(session, ids[0], models.ActionRaise, 40)
	require.ErrorIs(t, err, ErrInsufficientChips)
}

func TestEngineFoldEarlyWin(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100)

	res, err := engine.Apply(session, ids[0], models.ActionFold, 0)
	require.NoError(t, err)

	assert.True(t, res.Completed)
	assert.Equal(t, models.SessionStatusCompleted, res.Session.Status)
	assert.False(t, res.Session.Participants[0].IsActive)
	assert.Equal(t, 1, res.Session.ActiveCount())
}

func TestEngineFoldSkipsInactiveSeats(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100, 100)
	session.CurrentTurnIndex = 1

	res, err := engine.Apply(session, ids[1], models.ActionFold, 0)
	require.NoError(t, err)

	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.Session.CurrentTurnIndex)

	// Next fold wraps past the folded seat back to seat 0.
	res2, err := engine.Apply(res.Session, ids[2], models.ActionCheck, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Session.CurrentTurnIndex)
}

func TestEngineNotYourTurn(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100)

	_, err := engine.Apply(session, ids[1], models.ActionCheck, 0)
	require.ErrorIs(t, err, ErrNotYourTurn)

	_, err = engine.Apply(session, uuid.New(), models.ActionCheck, 0)
	require.ErrorIs(t, err, ErrNotYourTurn)
}

func TestEngineNotActive(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(100, 100)
	session.Status = models.SessionStatusPending

	_, err := engine.Apply(session, ids[0], models.ActionCheck, 0)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestEngineChipConservation(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(500, 500, 500)
	initial := chipTotal(session)

	res, err := engine.Apply(session, ids[0], models.ActionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, initial, chipTotal(res.Session))

	res, err = engine.Apply(res.Session, ids[1], models.ActionRaise, 50)
	require.NoError(t, err)
	assert.Equal(t, initial, chipTotal(res.Session))

	res, err = engine.Apply(res.Session, ids[2], models.ActionFold, 0)
	require.NoError(t, err)
	assert.Equal(t, initial, chipTotal(res.Session))
}

func TestEngineVersionIncrementsByOne(t *testing.T) {
	engine := NewEngine()
	session, ids := activeSession(500, 500)

	res, err := engine.Apply(session, ids[0], models.ActionCheck, 0)
	require.NoError(t, err)
	assert.Equal(t, session.StateVersion+1, res.Session.StateVersion)

	res2, err := engine.Apply(res.Session, ids[1], models.ActionCall, 0)
	require.NoError(t, err)
	assert.Equal(t, res.Session.StateVersion+1, res2.Session.StateVersion)
}
