package gamesync

import (
	"context"
	"sync"
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

type stubFetcher struct {
	mu      sync.Mutex
	session *models.Session
	calls   int
}

func (f *stubFetcher) GetSession(_ context.Context, _ string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.session == nil {
		return nil, table.ErrNotFound
	}
	return f.session.Clone(), nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubCounter struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func (c *stubCounter) SubscriberCount(id uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

func (c *stubCounter) set(id uuid.UUID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[uuid.UUID]int{}
	}
	c.counts[id] = n
}

func newTestLoop(session *models.Session) (*Loop, *stubFetcher, *stubCounter, *ChannelPublisher, *clockwork.FakeClock) {
	pub := NewChannelPublisher(64)
	clock := clockwork.NewFakeClock()
	b := NewBroadcaster(pub, clock, DefaultBroadcasterConfig())
	fetcher := &stubFetcher{session: session}
	counter := &stubCounter{}
	loop := NewLoop(fetcher, b, counter, clock, DefaultLoopConfig())
	return loop, fetcher, counter, pub, clock
}

func TestLoopUntracksWhenSubscribersLeave(t *testing.T) {
	session := testSession(1)
	loop, _, counter, _, _ := newTestLoop(session)

	loop.Track(session.ID)
	require.Equal(t, 1, loop.TrackedCount())

	counter.set(session.ID, 0)
	loop.tick(context.Background())
	assert.Equal(t, 0, loop.TrackedCount())
}

func TestLoopRefreshesStaleSessions(t *testing.T) {
	session := testSession(6)
	loop, fetcher, counter, pub, clock := newTestLoop(session)

	loop.Track(session.ID)
	counter.set(session.ID, 2)

	// Within the staleness threshold nothing happens.
	clock.Advance(3 * time.Second)
	loop.tick(context.Background())
	assert.Equal(t, 0, fetcher.callCount())
	assert.Empty(t, pub.Notifications())

	// Past the threshold the authoritative state is re-broadcast.
	clock.Advance(3 * time.Second)
	loop.tick(context.Background())
	require.Equal(t, 1, fetcher.callCount())

	n := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindGameUpdate, n.Kind)
	assert.Equal(t, events.OriginPeriodicRefresh, n.Origin)
	assert.Equal(t, int64(6), n.StateVersion)

	// The refresh itself resets the staleness clock.
	loop.tick(context.Background())
	assert.Equal(t, 1, fetcher.callCount())
}

func TestLoopFreshnessWiredToBroadcaster(t *testing.T) {
	session := testSession(3)
	loop, fetcher, counter, pub, clock := newTestLoop(session)

	loop.Track(session.ID)
	counter.set(session.ID, 1)
	clock.Advance(10 * time.Second)

	// A snapshot going out through the broadcaster counts as a refresh,
	// so the next tick sees the session as fresh.
	loop.broadcaster.BroadcastSnapshot(context.Background(), session, events.OriginMutation)
	recvNotification(t, pub.Notifications())

	loop.tick(context.Background())
	assert.Equal(t, 0, fetcher.callCount())
}

func TestLoopForceResync(t *testing.T) {
	session := testSession(8)
	loop, _, _, pub, _ := newTestLoop(session)

	require.Equal(t, 0, loop.TrackedCount())
	err := loop.ForceResync(context.Background(), session.ID)
	require.NoError(t, err)

	// Force resync enrolls the session in the loop.
	assert.Equal(t, 1, loop.TrackedCount())

	turn := recvNotification(t, pub.Notifications())
	update := recvNotification(t, pub.Notifications())
	force := recvNotification(t, pub.Notifications())
	assert.Equal(t, events.KindTurnChanged, turn.Kind)
	assert.Equal(t, events.OriginForceResync, update.Origin)
	assert.Equal(t, events.KindForceUIRefresh, force.Kind)
}

func TestLoopForceResyncUnknownSession(t *testing.T) {
	loop, _, _, _, _ := newTestLoop(nil)

	err := loop.ForceResync(context.Background(), uuid.New())
	require.ErrorIs(t, err, table.ErrNotFound)
	assert.Equal(t, 0, loop.TrackedCount())
}

func TestLoopRunStopsOnContextCancel(t *testing.T) {
	session := testSession(1)
	loop, _, _, _, clock := newTestLoop(session)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}
