// Package httpapi implements the HTTP surface that issues Tickets and Lobby
// Keys, serves the dynamic and static pages, and upgrades admitted
// websockets into the matchmaking pipeline: an httprouter.Router,
// securityHeaders, conditional request logging, and embed.FS-backed static
// payloads.
package httpapi

import (
	"github.com/matchrelay/server/internal/captcha"
	"github.com/matchrelay/server/internal/live"
	"github.com/matchrelay/server/internal/matchmaker"
	"github.com/matchrelay/server/internal/ticket"
)

// Deps bundles every shared component the route handlers need. Built once by
// internal/app and handed to NewRouter.
type Deps struct {
	Captcha     captcha.Gateway
	Tickets     *ticket.Tickets
	LobbyKeys   *ticket.LobbyKeys
	Live        *live.Counters
	Matchmakers map[int]*matchmaker.Matchmaker // keyed by DesiredNumPlayers (2, 4)
}

func (d Deps) matchmakerFor(desiredNumPlayers int) (*matchmaker.Matchmaker, bool) {
	mm, ok := d.Matchmakers[desiredNumPlayers]
	return mm, ok
}

// queueSizers returns every Matchmaker as a live.QueueSizer, for /serverinfo.
func (d Deps) queueSizers() []live.QueueSizer {
	out := make([]live.QueueSizer, 0, len(d.Matchmakers))
	for _, mm := range d.Matchmakers {
		out = append(out, mm)
	}
	return out
}
