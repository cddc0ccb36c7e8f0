package connection

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/matchrelay/server/internal/live"
	"github.com/matchrelay/server/internal/ticket"
)

// ErrBadTicket covers every admission failure the Admitter deliberately
// refuses to distinguish on the wire: the socket is always closed with code
// 1011 and a generic reason, never revealing which check failed.
var ErrBadTicket = errors.New("connection: ticket rejected")

// LiveRegistrar is the subset of live.Counters the Admitter needs.
type LiveRegistrar interface {
	AddConnection(conn live.Conn)
}

// Tickets is the subset of ticket.Tickets the Admitter consumes.
type Tickets interface {
	TakeIfPresent(value string) (ticket.Claim, bool)
	ExpectedLength() int
}

// AdmitOptions configures one Admit call.
type AdmitOptions struct {
	// BindTicketToIP rejects a ticket whose IssuedTo does not match the
	// requesting connection's address. Configurable, default off, since it
	// breaks legitimate joins from behind carrier-grade NAT or a proxy that
	// changes source address between the HTTP request and the upgrade.
	BindTicketToIP bool
}

// Admit extracts a ticket from the request (preferring the cookie set by
// internal/httpapi, falling back to the first text frame), consumes it
// exactly once, and on success returns a registered, pump-started Conn ready
// to be handed to a Matchmaker, along with the consumed Claim (whose
// DesiredNumPlayers tells the caller which size-class Matchmaker the ticket
// admits into; the connection's PairString is not known yet — the client sends it
// as its first post-admission frame). On any failure the socket is closed
// with close code 1011 and a generic reason, and the error is always
// ErrBadTicket regardless of which check failed.
func Admit(ctx context.Context, ws *websocket.Conn, r *http.Request, tickets Tickets, registrar LiveRegistrar, opts AdmitOptions) (*Conn, ticket.Claim, error) {
	remoteAddr := RealRemoteAddr(r)
	conn := New(ws, remoteAddr)

	value, err := extractTicket(ctx, conn, r)
	if err != nil {
		conn.CloseWithCode(websocket.CloseInternalServerErr, "admission failed")
		return nil, ticket.Claim{}, ErrBadTicket
	}
	if len(value) != tickets.ExpectedLength() {
		conn.CloseWithCode(websocket.CloseInternalServerErr, "admission failed")
		return nil, ticket.Claim{}, ErrBadTicket
	}

	claim, ok := tickets.TakeIfPresent(value)
	if !ok {
		conn.CloseWithCode(websocket.CloseInternalServerErr, "admission failed")
		return nil, ticket.Claim{}, ErrBadTicket
	}
	if opts.BindTicketToIP && claim.IssuedTo != "" && claim.IssuedTo != remoteAddr {
		conn.CloseWithCode(websocket.CloseInternalServerErr, "admission failed")
		return nil, ticket.Claim{}, ErrBadTicket
	}

	conn.StartPumps()
	registrar.AddConnection(conn)
	return conn, claim, nil
}

// extractTicket prefers the cookie set during HTTP ticket issuance; if
// absent it falls back to reading the connection's first frame, which must
// arrive as text — a ticket delivered as a binary frame is rejected exactly
// like a missing or wrong-length one.
func extractTicket(ctx context.Context, conn *Conn, r *http.Request) (string, error) {
	if c, err := r.Cookie(TicketCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	return conn.ReceiveText(ctx)
}

// TicketCookieName is the cookie internal/httpapi sets on ticket issuance
// and this package reads back on websocket upgrade.
const TicketCookieName = "matchrelay_ticket"
