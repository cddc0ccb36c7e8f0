// Package matchmaker implements the single-writer actor that turns
// ADD/REMOVE commands into started Lobbies: a public FIFO queue plus a
// private pairString-keyed room map, both owned exclusively by one service
// goroutine so the waiting structures never need a mutex.
//
// The actor/channel shape and errgroup-supervised lifecycle are grounded on
// udisondev-la2go/cmd/gameserver's errgroup.WithContext root supervisor; the
// collection bookkeeping (waiting rooms, running set, capacity check)
// generalizes FenixDeveloper-vector-racer-v2's Matchmaker from a
// mutex-guarded map into a channel-driven actor.
package matchmaker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/lobby"
)

// PublicPairString is the pair-string sentinel denoting the public queue,
// per the GLOSSARY's "default"/"public" sentinel.
const PublicPairString = "default"

type commandKind int

const (
	cmdAdd commandKind = iota
	cmdRemove
)

type command struct {
	kind   commandKind
	connID string
}

// ConnLookup resolves a connection id to its live Conn, or false if it has
// vanished (closed, already removed). Commands carry only ids, and the actor
// re-resolves through this function on every handle so it never holds a
// stale pointer across a command boundary.
type ConnLookup func(id string) (*connection.Conn, bool)

// Config bundles the knobs the Matchmaker and the Lobbies it starts need.
type Config struct {
	DesiredNumPlayers int
	BufferSize        int
	ServiceSleep      time.Duration
	Engine            lobby.Config
}

// Matchmaker is the single-writer actor owning one size class's public
// queue and private room map.
type Matchmaker struct {
	cfg    Config
	cmds   chan command
	lookup ConnLookup

	onGameStarted func()

	publicQueue    []*lobby.Lobby
	privateLobbies map[string]*lobby.Lobby
	running        map[*lobby.Lobby]struct{}

	// sizeMu guards the two counters below, which mirror publicQueue/
	// privateLobbies lengths for reporting to internal/live without handing
	// out direct access to actor-owned state.
	sizeMu       sync.Mutex
	publicSize   int
	privateSize  int
}

// New constructs a Matchmaker for one desiredNumPlayers size class. The
// lobby-key registry itself is shared directly into internal/httpapi and
// internal/app for issuance/validation; the Matchmaker only ever sees a
// connection's already-resolved PairString, so it holds no reference to the
// registry.
func New(cfg Config, lookup ConnLookup, onGameStarted func()) *Matchmaker {
	return &Matchmaker{
		cfg:            cfg,
		cmds:           make(chan command, cfg.BufferSize),
		lookup:         lookup,
		onGameStarted:  onGameStarted,
		privateLobbies: make(map[string]*lobby.Lobby),
		running:        make(map[*lobby.Lobby]struct{}),
	}
}

// Add enqueues an ADD(connId) command, resolved against the connection's
// PairString field by the service goroutine.
func (m *Matchmaker) Add(ctx context.Context, connID string) error {
	return m.send(ctx, command{kind: cmdAdd, connID: connID})
}

// Remove enqueues a REMOVE(connId) command.
func (m *Matchmaker) Remove(ctx context.Context, connID string) error {
	return m.send(ctx, command{kind: cmdRemove, connID: connID})
}

func (m *Matchmaker) send(ctx context.Context, c command) error {
	select {
	case m.cmds <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublicQueueSize reports the number of waiting public lobbies, for
// live.Snapshot's queue_size field.
func (m *Matchmaker) PublicQueueSize() int {
	m.sizeMu.Lock()
	defer m.sizeMu.Unlock()
	return m.publicSize
}

// PrivateWaitingSize reports the number of waiting private lobbies.
func (m *Matchmaker) PrivateWaitingSize() int {
	m.sizeMu.Lock()
	defer m.sizeMu.Unlock()
	return m.privateSize
}

// publishSizes is called by the service goroutine after every command that
// can change queue depth, keeping the reporting counters in step with
// actor-owned state without exposing it directly.
func (m *Matchmaker) publishSizes() {
	m.sizeMu.Lock()
	defer m.sizeMu.Unlock()
	m.publicSize = len(m.publicQueue)
	m.privateSize = len(m.privateLobbies)
}

// Run is the single service goroutine. It drains cmds until ctx is
// cancelled, yielding ServiceSleep between drains (a pacing knob, not a
// correctness lever).
func (m *Matchmaker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-m.cmds:
			m.handle(ctx, c)
		}
		if m.cfg.ServiceSleep > 0 {
			time.Sleep(m.cfg.ServiceSleep)
		}
	}
}

func (m *Matchmaker) handle(ctx context.Context, c command) {
	switch c.kind {
	case cmdAdd:
		m.handleAdd(ctx, c.connID)
	case cmdRemove:
		m.handleRemove(c.connID)
	}
	m.publishSizes()
}

func (m *Matchmaker) handleAdd(ctx context.Context, connID string) {
	conn, ok := m.lookup(connID)
	if !ok {
		return
	}

	public := conn.PairString == PublicPairString
	var l *lobby.Lobby
	if public {
		if len(m.publicQueue) > 0 {
			l = m.publicQueue[0]
		}
	} else if existing, ok := m.privateLobbies[conn.PairString]; ok {
		l = existing
	}

	if l == nil {
		l = lobby.New(conn.PairString, m.cfg.DesiredNumPlayers)
		if public {
			m.publicQueue = append(m.publicQueue, l)
		} else {
			m.privateLobbies[conn.PairString] = l
		}
	}

	conn.SetLobby(l)
	l.AddPlayer(conn)

	if !l.IsFull() {
		return
	}

	if public {
		m.publicQueue = m.publicQueue[1:]
	} else {
		delete(m.privateLobbies, l.PairString)
	}
	l.Started.Store(true)
	m.running[l] = struct{}{}
	m.startEngine(ctx, l)
}

func (m *Matchmaker) handleRemove(connID string) {
	conn, ok := m.lookup(connID)
	if !ok {
		return
	}
	l, ok := conn.Lobby().(*lobby.Lobby)
	if !ok || l == nil {
		return
	}

	if l.Started.Load() {
		delete(m.running, l)
		return
	}

	l.RemovePlayer(connID)
	if l.IsEmpty() {
		if l.PairString == PublicPairString {
			m.removeFromPublicQueue(l)
		} else {
			delete(m.privateLobbies, l.PairString)
		}
	}
}

func (m *Matchmaker) removeFromPublicQueue(l *lobby.Lobby) {
	for i, q := range m.publicQueue {
		if q == l {
			m.publicQueue = append(m.publicQueue[:i], m.publicQueue[i+1:]...)
			return
		}
	}
}

// startEngine dispatches the Lobby's Game Engine in its own goroutine; the
// Matchmaker does not wait for it. The engine's own errgroup owns the game's
// lifetime from here on, and the Matchmaker only learns of completion via a
// later REMOVE or by the running-set entry simply going stale.
func (m *Matchmaker) startEngine(ctx context.Context, l *lobby.Lobby) {
	engine := lobby.NewEngine(m.cfg.Engine)
	engine.OnGameStarted = m.onGameStarted
	go func() {
		if err := engine.Run(ctx, l); err != nil {
			log.Printf("[Matchmaker] lobby %s ended with error: %v", l.PairString, err)
		}
	}()
}
