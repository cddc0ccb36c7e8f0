package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/matchrelay/server/internal/config"
	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/live"
)

// upgrader allows any origin: this server is meant to sit behind an
// arbitrary embedding page, and admission is gated by the ticket, not by
// Origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveGame builds the websocket handler for one fixed player count (2 or
// 4), shared by /game and /fourplayergame. A connection is admitted, told
// to send its pair-string as the very next frame (ticket then pair-string
// as two sequential messages), routed into the matching size-class
// Matchmaker, and released back out of the matchmaker once its websocket
// dies or matchmaking times out.
func serveGame(cfg *config.Config, deps Deps, desiredNumPlayers int) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		mm, ok := deps.matchmakerFor(desiredNumPlayers)
		if !ok {
			writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			reportIfErr(cfg, err, "serveGame upgrade")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
		defer cancel()

		conn, claim, err := connection.Admit(ctx, ws, r, deps.Tickets, deps.Live, connection.AdmitOptions{
			BindTicketToIP: cfg.BindTicketIP,
		})
		if err != nil {
			return
		}
		if claim.DesiredNumPlayers != desiredNumPlayers {
			conn.CloseWithCode(websocket.CloseInternalServerErr, "admission failed")
			deps.Live.RemoveConnection(conn.ID)
			return
		}

		pairString, err := conn.Receive(ctx)
		if err != nil {
			conn.Close()
			deps.Live.RemoveConnection(conn.ID)
			return
		}
		conn.PairString = string(pairString)

		if err := mm.Add(ctx, conn.ID); err != nil {
			conn.Close()
			deps.Live.RemoveConnection(conn.ID)
			return
		}

		select {
		case <-conn.Done():
		case <-ctx.Done():
			// StartupTimeout elapsed with no partner found: drop the
			// connection out of the matchmaker's queue instead of waiting on
			// it forever.
			conn.CloseWithCode(websocket.CloseInternalServerErr, "matchmaking timed out")
		}

		// Removing a connection that already started its game (and was
		// therefore dropped from the matchmaker's waiting structures) is a
		// harmless no-op; this covers both the waiting-forever and the
		// already-playing-and-disconnected cases with one call.
		mm.Remove(context.Background(), conn.ID)
		deps.Live.RemoveConnection(conn.ID)
	}
}

// playercountPump adapts a Conn to live.Pump.
type playercountPump struct {
	conn *connection.Conn
}

func (p playercountPump) SendText(s string) error { return p.conn.SendText(s) }
func (p playercountPump) Done() <-chan struct{}    { return p.conn.Done() }

func servePlayercount(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			reportIfErr(cfg, err, "servePlayercount upgrade")
			return
		}

		conn := connection.New(ws, connection.RealRemoteAddr(r))
		conn.StartPumps()

		pc := playercountPump{conn: conn}
		live.RunPlayercount(r.Context(), deps.Live, pc, cfg.NumPlayersRefreshTime, cfg.MaxNumPlayersRefreshes)

		conn.Close()
	}
}
