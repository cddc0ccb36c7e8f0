package lobby

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/shield"
)

// Reserved control strings exchanged over the relay and timer loops.
const (
	msgGo            = "Go"
	msgTimer         = "TIMER"
	msgTimeout       = "TIMEOUT"
	msgFrameTimeout  = "FRAME_TIMEOUT"
	ctrlDisconnect   = "DISCONNECT"
	ctrlResign       = "RESIGN"
)

// errLobbyEnded is the sentinel an Engine goroutine returns to cancel its
// errgroup's context on an end-of-game condition (lifetime elapsed, resign,
// disconnect, failed receive). Run discards the group's error, so every
// ending gets the same teardown.
var errLobbyEnded = errors.New("lobby: game ended")

// Config bundles the pacing knobs the Engine needs, taken from
// internal/config defaults.
type Config struct {
	StartupTimeout time.Duration
	FrameDelay     time.Duration
	FrameTimeout   time.Duration
	GameLifetime   time.Duration
}

// Engine runs one Lobby's handshake, relay, and timer loops to completion.
type Engine struct {
	cfg Config
	// OnGameStarted is called exactly once, after a successful handshake and
	// before the relay loops begin — the Matchmaker wires this to
	// live.Counters.IncGamesPlayed.
	OnGameStarted func()
}

// NewEngine constructs an Engine with the given pacing configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Run drives l from handshake through teardown and always returns nil: a
// failed handshake, every game ending (timeout, resign, disconnect, frame
// timeout) and cancellation of the parent ctx all end in the same teardown,
// and none of them is reported as an error.
func (e *Engine) Run(ctx context.Context, l *Lobby) error {
	hsCtx, cancel := context.WithTimeout(ctx, e.cfg.StartupTimeout)
	defer cancel()

	arrival := l.snapshotPlayers()
	seating := shuffledSeats(len(arrival))

	// seated[seat] is the connection occupying that seat; arrival[idx] is
	// the occupant of seat seating[idx]. The handshake walks connections in
	// arrival order, so seats are not handshaken in index order 0..n-1.
	seated := make([]*connection.Conn, len(arrival))
	for idx, seat := range seating {
		seated[seat] = arrival[idx]
	}

	if err := e.handshake(hsCtx, l, arrival, seating); err != nil {
		shield.Run(func(context.Context) { signalFinished(seated) })
		return nil
	}

	if e.OnGameStarted != nil {
		e.OnGameStarted()
	}
	for _, p := range seated {
		p.GameStarted.Signal()
	}

	g, gctx := errgroup.WithContext(ctx)
	for seat := range seated {
		seat := seat
		g.Go(func() error { return e.seatLoop(gctx, seated, seat) })
	}
	g.Go(func() error { return e.timerLoop(gctx, seated) })

	_ = g.Wait()

	shield.Run(func(context.Context) { signalFinished(seated) })
	return nil
}

// handshake runs the strictly sequential per-connection exchange in arrival
// order, assigning each connection its shuffled seat index before the relay
// loops begin. The order follows arrival, not seat index.
func (e *Engine) handshake(ctx context.Context, l *Lobby, players []*connection.Conn, seating []int) error {
	for idx, seat := range seating {
		conn := players[idx]
		conn.Player = seat
		conn.PairString = l.PairString

		if err := conn.SendText(l.PairString); err != nil {
			return err
		}
		if _, err := e.recvWithTimeout(ctx, conn); err != nil {
			return err
		}
		if err := conn.SendText("P" + strconv.Itoa(seat+1)); err != nil {
			return err
		}
		if _, err := e.recvWithTimeout(ctx, conn); err != nil {
			return err
		}
		if seat == 0 {
			if err := conn.SendText(msgGo); err != nil {
				return err
			}
			if _, err := e.recvWithTimeout(ctx, conn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) recvWithTimeout(ctx context.Context, conn *connection.Conn) ([]byte, error) {
	recvCtx, cancel := context.WithTimeout(ctx, e.cfg.FrameTimeout)
	defer cancel()
	return conn.Receive(recvCtx)
}

// seatLoop is one seat's relay goroutine: receive one frame, pace by
// FrameDelay, broadcast to every other seat, watching for the reserved
// control strings and for frame timeout.
func (e *Engine) seatLoop(ctx context.Context, players []*connection.Conn, seat int) error {
	conn := players[seat]
	timer := time.NewTimer(e.cfg.FrameDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(e.cfg.FrameDelay)

		recvCtx, cancel := context.WithTimeout(ctx, e.cfg.FrameTimeout)
		data, err := conn.Receive(recvCtx)
		cancel()
		if err != nil {
			_ = conn.SendText(msgFrameTimeout)
			return errLobbyEnded
		}

		broadcastExcept(players, seat, data)

		msg := string(data)
		if msg == ctrlDisconnect || msg == ctrlResign {
			return errLobbyEnded
		}
	}
}

// timerLoop broadcasts "TIMER" once a second for GAME_LIFETIME seconds,
// then "TIMEOUT", then ends the game.
func (e *Engine) timerLoop(ctx context.Context, players []*connection.Conn) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ticks := int(e.cfg.GameLifetime / time.Second)
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		broadcastAll(players, []byte(msgTimer))
	}
	broadcastAll(players, []byte(msgTimeout))
	return errLobbyEnded
}

func broadcastAll(players []*connection.Conn, data []byte) {
	for _, p := range players {
		_ = p.Send(data)
	}
}

func broadcastExcept(players []*connection.Conn, except int, data []byte) {
	for i, p := range players {
		if i == except {
			continue
		}
		_ = p.Send(data)
	}
}

func signalFinished(players []*connection.Conn) {
	for _, p := range players {
		p.GameFinished.Signal()
		_ = p.Close()
	}
}

// shuffledSeats returns a random permutation of 0..n-1, assigning seats via
// a Fisher-Yates shuffle so arrival order never determines seat number.
func shuffledSeats(n int) []int {
	seats := make([]int, n)
	for i := range seats {
		seats[i] = i
	}
	rand.Shuffle(n, func(i, j int) { seats[i], seats[j] = seats[j], seats[i] })
	return seats
}
