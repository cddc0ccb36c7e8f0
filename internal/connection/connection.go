// Package connection implements the live websocket handle (C4's admitted
// Connection) and the Admitter that turns an upgraded websocket plus a
// one-shot ticket into a registered Connection ready for matchmaking.
//
// The write-pump discipline (write deadlines, periodic pings, bounded send buffer)
// is grounded on FenixDeveloper-vector-racer-v2's ClientConnection, which
// models exactly this kind of per-connection I/O goroutine pair and the
// frame-timeout deadlines a relay server needs to detect a dead peer.
package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 20 * time.Second
	maxMessageSize = 4096
)

// Conn is a live websocket handle with the matchmaking/game fields layered
// on top. It is owned by its own handler goroutine; other goroutines only
// ever reach it through Send, the Player/PairString fields, and the two
// Events.
type Conn struct {
	ID         string
	RemoteAddr string
	PairString string
	Player     int

	GameStarted  *Event
	GameFinished *Event

	ws       *websocket.Conn
	sendChan chan []byte
	closed   chan struct{}

	lobby any // set once by the Matchmaker; read back via Lobby()/SetLobby()
}

// New wraps an upgraded websocket connection. The connection is not
// registered with anything yet; call Admit to run it through ticket
// validation and live-connection bookkeeping.
func New(ws *websocket.Conn, remoteAddr string) *Conn {
	return &Conn{
		ID:           uuid.NewString(),
		RemoteAddr:   remoteAddr,
		ws:           ws,
		sendChan:     make(chan []byte, 32),
		closed:       make(chan struct{}),
		GameStarted:  NewEvent(),
		GameFinished: NewEvent(),
	}
}

// GetID satisfies the minimal live.Conn / lobby.Conn interfaces that leaf
// packages use to avoid importing this package directly.
func (c *Conn) GetID() string { return c.ID }

// SetLobby records which Lobby this connection belongs to. Called exactly
// once, by the Matchmaker, at assignment time.
func (c *Conn) SetLobby(l any) { c.lobby = l }

// Lobby returns the opaque Lobby handle set by SetLobby, or nil.
func (c *Conn) Lobby() any { return c.lobby }

// Send queues a text frame for delivery, non-blocking: if the outbound
// buffer is full the message is dropped rather than stalling the caller.
func (c *Conn) Send(data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	case <-c.closed:
		return errors.New("connection: send on closed connection")
	default:
		return errors.New("connection: send buffer full")
	}
}

// SendText is a convenience wrapper for control strings.
func (c *Conn) SendText(s string) error {
	return c.Send([]byte(s))
}

// Receive blocks for the next client message, honoring ctx's deadline. Used
// directly during the sequential handshake, where exactly one read is
// wanted at a time.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := c.ReceiveFrame(ctx)
	return data, err
}

// ReceiveFrame is Receive plus the frame's websocket message type, for
// callers that must distinguish a text frame from a binary one.
func (c *Conn) ReceiveFrame(ctx context.Context) (int, []byte, error) {
	type result struct {
		messageType int
		data        []byte
		err         error
	}
	out := make(chan result, 1)
	go func() {
		messageType, data, err := c.ws.ReadMessage()
		out <- result{messageType, data, err}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-out:
		return r.messageType, r.data, r.err
	}
}

// ErrNotText is returned by ReceiveText when the client's frame arrives as
// binary instead of text.
var ErrNotText = errors.New("connection: expected a text frame")

// ReceiveText is Receive restricted to text frames, for protocol steps that
// must reject a binary frame outright rather than accept it as if it were
// text.
func (c *Conn) ReceiveText(ctx context.Context) (string, error) {
	messageType, data, err := c.ReceiveFrame(ctx)
	if err != nil {
		return "", err
	}
	if messageType != websocket.TextMessage {
		return "", ErrNotText
	}
	return string(data), nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}
	return c.ws.Close()
}

// CloseWithCode closes with a specific websocket close code and reason.
// Never reveals which admission check failed beyond the code.
func (c *Conn) CloseWithCode(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(msg, time.Now().Add(writeWait))
	return c.Close()
}

// Done reports when the connection has been closed.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// writePump drains sendChan to the socket and pings periodically to detect
// dead peers.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.closed:
			return
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPumps launches the write pump and sets the read size limit; no read
// deadline or pong handler is installed.
// The caller drives reads directly via Receive (the handshake is strictly
// sequential, and the game loop issues one bounded Receive per seat per
// turn), so there is no separate background read pump.
func (c *Conn) StartPumps() {
	c.ws.SetReadLimit(maxMessageSize)
	go c.writePump()
}

// RealRemoteAddr extracts the client's address for logging/IP-binding
// purposes, preferring common reverse-proxy headers over the raw socket
// address.
func RealRemoteAddr(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

