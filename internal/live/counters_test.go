package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id string }

func (f fakeConn) GetID() string { return f.id }

func TestAddRemoveConnection(t *testing.T) {
	c := New()
	c.AddConnection(fakeConn{"a"})
	c.AddConnection(fakeConn{"b"})
	assert.Equal(t, 2, c.PlayersOnline())

	c.RemoveConnection("a")
	assert.Equal(t, 1, c.PlayersOnline())

	c.RemoveConnection("does-not-exist")
	assert.Equal(t, 1, c.PlayersOnline())
}

func TestLookupResolvesRegisteredConnection(t *testing.T) {
	c := New()
	c.AddConnection(fakeConn{"a"})

	conn, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", conn.GetID())

	_, ok = c.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestHomepageCounterFloorsAtZero(t *testing.T) {
	c := New()
	c.DecHomepage()
	assert.Equal(t, 0, c.OnHomepage())

	c.IncHomepage()
	c.IncHomepage()
	c.DecHomepage()
	assert.Equal(t, 1, c.OnHomepage())
}

func TestGamesPlayedIncrements(t *testing.T) {
	c := New()
	c.IncGamesPlayed()
	c.IncGamesPlayed()
	assert.Equal(t, 2, c.GamesPlayed())
}

type fakeKeyCounter int

func (f fakeKeyCounter) Len() int { return int(f) }

type fakeQueueSizer struct{ queue, waiting int }

func (f fakeQueueSizer) PublicQueueSize() int   { return f.queue }
func (f fakeQueueSizer) PrivateWaitingSize() int { return f.waiting }

func TestBuildSnapshotSumsQueueSizers(t *testing.T) {
	c := New()
	c.AddConnection(fakeConn{"a"})
	c.IncHomepage()
	c.IncGamesPlayed()

	snap := c.BuildSnapshot(fakeKeyCounter(3), fakeKeyCounter(1),
		fakeQueueSizer{queue: 2, waiting: 1},
		fakeQueueSizer{queue: 5, waiting: 0},
	)

	assert.Equal(t, 1, snap.PlayersOnline)
	assert.Equal(t, 1, snap.OnHomepage)
	assert.Equal(t, 3, snap.TokensActive)
	assert.Equal(t, 1, snap.LobbyKeysActive)
	assert.Equal(t, 1, snap.SessionGamesPlayed)
	assert.Equal(t, 7, snap.QueueSize)
	assert.Equal(t, 1, snap.PrivateGamesWaiting)
}

type fakePump struct {
	sent chan string
	done chan struct{}
}

func newFakePump() *fakePump {
	return &fakePump{sent: make(chan string, 16), done: make(chan struct{})}
}

func (f *fakePump) SendText(s string) error {
	select {
	case f.sent <- s:
	default:
	}
	return nil
}

func (f *fakePump) Done() <-chan struct{} { return f.done }

func TestRunPlayercountIncrementsThenShieldsDecrement(t *testing.T) {
	c := New()
	p := newFakePump()

	ctx, cancel := context.WithCancel(context.Background())
	go RunPlayercount(ctx, c, p, 10*time.Millisecond, 100)

	require.Eventually(t, func() bool { return len(p.sent) > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, c.OnHomepage())

	cancel()
	require.Eventually(t, func() bool { return c.OnHomepage() == 0 }, time.Second, time.Millisecond)
}

func TestRunPlayercountStopsAfterMaxRefreshes(t *testing.T) {
	c := New()
	p := newFakePump()

	done := make(chan struct{})
	go func() {
		RunPlayercount(context.Background(), c, p, time.Millisecond, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPlayercount did not return after exhausting refreshes")
	}
	assert.Equal(t, 0, c.OnHomepage())
}
