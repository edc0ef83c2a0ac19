package gamesync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablestakes/go/internal/events"
	"github.com/mcdev12/tablestakes/go/internal/models"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(version int64) *models.Session {
	userID := uuid.New()
	return &models.Session{
		ID:     uuid.New(),
		Name:   "test table",
		HostID: userID,
		Participants: []models.Participant{
			{UserID: userID, DisplayName: "host", ChipBalance: 990, IsActive: true},
			{UserID: uuid.New(), DisplayName: "bob", ChipBalance: 1000, IsActive: true, Position: 1},
		},
		SmallBlind:       5,
		BigBlind:         10,
		Pot:              10,
		CurrentBet:       10,
		CurrentTurnIndex: 1,
		Status:           models.SessionStatusActive,
		StateVersion:     version,
	}
}

func recvNotification(t *testing.T, ch <-chan *events.Notification) *events.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func TestBroadcastActionTriplePattern(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	session := testSession(5)
	res := &table.ActionResult{
		Session: session,
		Event: models.ActionEvent{
			SessionID:    session.ID,
			Kind:         models.ActionCall,
			ActorID:      session.Participants[0].UserID,
			StateVersion: 5,
		},
		PreviousTurnIndex: 0,
	}

	b.BroadcastAction(context.Background(), res)

	first := recvNotification(t, pub.Notifications())
	second := recvNotification(t, pub.Notifications())
	third := recvNotification(t, pub.Notifications())

	assert.Equal(t, events.KindTurnChanged, first.Kind)
	assert.Equal(t, 0, first.PreviousTurnIndex)
	assert.Equal(t, 1, first.CurrentTurnIndex)

	assert.Equal(t, events.KindActionPerformed, second.Kind)
	assert.Equal(t, models.ActionCall, second.ActionType)

	assert.Equal(t, events.KindGameUpdate, third.Kind)
	assert.Equal(t, events.OriginMutation, third.Origin)

	// All three carry the same snapshot and version.
	for _, n := range []*events.Notification{first, second, third} {
		assert.Equal(t, session.ID.String(), n.SessionID)
		assert.Equal(t, int64(5), n.StateVersion)
		require.NotNil(t, n.Session)
	}
}

func TestBroadcastActionResendScheduleRotatesKinds(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	session := testSession(7)
	b.BroadcastAction(context.Background(), &table.ActionResult{
		Session: session,
		Event:   models.ActionEvent{SessionID: session.ID, Kind: models.ActionCheck, StateVersion: 7},
	})

	for i := 0; i < 3; i++ {
		recvNotification(t, pub.Notifications())
	}

	wantKinds := []events.Kind{
		events.KindTurnChanged,
		events.KindActionPerformed,
		events.KindGameUpdate,
		events.KindTurnChanged,
		events.KindActionPerformed,
	}
	for _, want := range wantKinds {
		clock.BlockUntil(1)
		clock.Advance(200 * time.Millisecond)
		n := recvNotification(t, pub.Notifications())
		assert.Equal(t, want, n.Kind)
		assert.Equal(t, events.OriginResend, n.Origin)
		assert.Equal(t, int64(7), n.StateVersion)
	}

	// The schedule closes with a pull trigger carrying no snapshot.
	refresh := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindRequestRefresh, refresh.Kind)
	assert.Nil(t, refresh.Session)
}

func TestBroadcastActionResendSurvivesCallerCancel(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	// HTTP handlers pass the request context, which is cancelled as soon as
	// the handler returns. The schedule must keep running regardless.
	ctx, cancel := context.WithCancel(context.Background())

	session := testSession(7)
	b.BroadcastAction(ctx, &table.ActionResult{
		Session: session,
		Event:   models.ActionEvent{SessionID: session.ID, Kind: models.ActionCall, StateVersion: 7},
	})

	for i := 0; i < 3; i++ {
		recvNotification(t, pub.Notifications())
	}
	cancel()

	for i := 0; i < len(DefaultBroadcasterConfig().ResendSchedule); i++ {
		clock.BlockUntil(1)
		clock.Advance(200 * time.Millisecond)
		n := recvNotification(t, pub.Notifications())
		assert.Equal(t, events.OriginResend, n.Origin)
	}

	refresh := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindRequestRefresh, refresh.Kind)
}

func TestBroadcastLifecycleRosterChangeIsSingleShot(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	session := testSession(2)
	actorID := session.Participants[1].UserID
	b.BroadcastLifecycle(context.Background(), table.LifecycleInfo{
		Kind:    events.KindPlayerJoined,
		Session: session,
		ActorID: actorID,
	})

	joined := recvNotification(t, pub.Notifications())
	update := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindPlayerJoined, joined.Kind)
	assert.Equal(t, actorID.String(), joined.ActorID)
	assert.Equal(t, events.KindGameUpdate, update.Kind)

	// Roster changes get no resend schedule.
	assert.Empty(t, pub.Notifications())
}

func TestBroadcastLifecycleStartGetsResendSchedule(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	session := testSession(2)
	b.BroadcastLifecycle(context.Background(), table.LifecycleInfo{
		Kind:    events.KindGameStarted,
		Session: session,
		ActorID: session.HostID,
	})

	recvNotification(t, pub.Notifications())
	recvNotification(t, pub.Notifications())

	clock.BlockUntil(1)
	clock.Advance(200 * time.Millisecond)
	resend := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindGameStarted, resend.Kind)
	assert.Equal(t, events.OriginResend, resend.Origin)
}

func TestBroadcastSnapshotTagsOrigin(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	var fresh []string
	b.SetFreshness(func(id string) { fresh = append(fresh, id) })

	session := testSession(9)
	b.BroadcastSnapshot(context.Background(), session, events.OriginPeriodicRefresh)

	n := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindGameUpdate, n.Kind)
	assert.Equal(t, events.OriginPeriodicRefresh, n.Origin)
	assert.Equal(t, []string{session.ID.String()}, fresh)
}

func TestBroadcastResync(t *testing.T) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())

	session := testSession(4)
	b.BroadcastResync(context.Background(), session)

	turn := recvNotification(t, pub.Notifications())
	update := recvNotification(t, pub.Notifications())
	force := recvNotification(t, pub.Notifications())

	assert.Equal(t, events.KindTurnChanged, turn.Kind)
	assert.Equal(t, events.KindGameUpdate, update.Kind)
	assert.Equal(t, events.OriginForceResync, update.Origin)
	assert.Equal(t, events.KindForceUIRefresh, force.Kind)
}
