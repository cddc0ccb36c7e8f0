package matchmaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/lobby"
)

func testConfig() Config {
	return Config{
		DesiredNumPlayers: 2,
		BufferSize:        8,
		ServiceSleep:      0,
		Engine: lobby.Config{
			StartupTimeout: 100 * time.Millisecond,
			FrameDelay:     time.Millisecond,
			FrameTimeout:   100 * time.Millisecond,
			GameLifetime:   time.Second,
		},
	}
}

func newLookup(conns ...*connection.Conn) ConnLookup {
	byID := make(map[string]*connection.Conn, len(conns))
	for _, c := range conns {
		byID[c.ID] = c
	}
	return func(id string) (*connection.Conn, bool) {
		c, ok := byID[id]
		return c, ok
	}
}

// newWSBackedConn gives a test connection.Conn a real websocket underneath
// so a Matchmaker that fills a Lobby and dispatches its Engine never
// dereferences a nil socket; the handshake is left to time out on its own
// (StartupTimeout/FrameTimeout are cut small in testConfig) since these
// tests care about matching, not full game completion.
func newWSBackedConn(t *testing.T, id, pairString string) (*connection.Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- ws
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	serverConn := <-serverCh
	conn := connection.New(serverConn, "test")
	conn.ID = id
	conn.PairString = pairString
	conn.StartPumps()
	return conn, client
}

// driveHandshake plays one seat's client-side handshake exchange, adapting
// to whichever seat (first or last) the Matchmaker's Engine assigned it.
func driveHandshake(t *testing.T, client *websocket.Conn) {
	t.Helper()
	_, _, err := client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("ready")))

	_, seatMsg, err := client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("set")))

	if string(seatMsg) == "P1" {
		_, _, err := client.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("start")))
	}
}

func TestAddPairsTwoPublicJoiners(t *testing.T) {
	a, _ := newWSBackedConn(t, "a", PublicPairString)
	b, _ := newWSBackedConn(t, "b", PublicPairString)

	mm := New(testConfig(), newLookup(a, b), func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx)

	require.NoError(t, mm.Add(ctx, "a"))
	waitUntil(t, func() bool { return mm.PublicQueueSize() == 1 })

	require.NoError(t, mm.Add(ctx, "b"))
	waitUntil(t, func() bool { return mm.PublicQueueSize() == 0 })

	la, ok := a.Lobby().(*lobby.Lobby)
	require.True(t, ok)
	assert.Equal(t, 2, la.Size())
	assert.Same(t, a.Lobby(), b.Lobby())
}

func TestPrivateRoomMatchesByExactPairString(t *testing.T) {
	a, _ := newWSBackedConn(t, "a", "room-1")
	b, _ := newWSBackedConn(t, "b", "room-1")
	c := &connection.Conn{ID: "c", PairString: "room-2"}

	mm := New(testConfig(), newLookup(a, b, c), func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx)

	require.NoError(t, mm.Add(ctx, "a"))
	require.NoError(t, mm.Add(ctx, "c"))
	waitUntil(t, func() bool { return mm.PrivateWaitingSize() == 2 })

	require.NoError(t, mm.Add(ctx, "b"))
	waitUntil(t, func() bool { return mm.PrivateWaitingSize() == 1 })

	assert.Same(t, a.Lobby(), b.Lobby())
	assert.NotEqual(t, a.Lobby(), c.Lobby())
}

func TestRemoveBeforeStartDropsWaitingLobby(t *testing.T) {
	a := &connection.Conn{ID: "a", PairString: PublicPairString}

	mm := New(testConfig(), newLookup(a), func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx)

	require.NoError(t, mm.Add(ctx, "a"))
	waitUntil(t, func() bool { return mm.PublicQueueSize() == 1 })

	require.NoError(t, mm.Remove(ctx, "a"))
	waitUntil(t, func() bool { return mm.PublicQueueSize() == 0 })
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	mm := New(testConfig(), newLookup(), func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx)

	require.NoError(t, mm.Remove(ctx, "ghost"))
	waitUntil(t, func() bool { return mm.PublicQueueSize() == 0 })
}

func TestOnGameStartedFiresOnceHandshakeSucceeds(t *testing.T) {
	a, clientA := newWSBackedConn(t, "a", PublicPairString)
	b, clientB := newWSBackedConn(t, "b", PublicPairString)

	started := make(chan struct{}, 1)
	cfg := testConfig()
	cfg.Engine.StartupTimeout = 2 * time.Second
	cfg.Engine.FrameTimeout = 2 * time.Second
	mm := New(cfg, newLookup(a, b), func() { started <- struct{}{} })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mm.Run(ctx)

	require.NoError(t, mm.Add(ctx, "a"))
	require.NoError(t, mm.Add(ctx, "b"))

	driveHandshake(t, clientA)
	driveHandshake(t, clientB)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("OnGameStarted never fired")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
