package httpapi

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/matchrelay/server/internal/config"
	"github.com/matchrelay/server/internal/connection"
)

// serveLobbyKey implements GET /g/:lobbyKey: validate the key against
// LobbyKeys.Contains (a peek, never a take — a key's expiry must not
// invalidate a lobby that already started), mint a Ticket, and serve the
// play page with PSTR_PLACEHOLDER set to the lobby key itself so every
// joiner's client sends it back as the pair-string.
func serveLobbyKey(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		lobbyKey := p.ByName("lobbyKey")
		if len(lobbyKey) > 32 || !deps.LobbyKeys.Contains(lobbyKey) {
			writeErrorPage(cfg, w, http.StatusNotFound, "Not Found", "This lobby no longer exists.")
			return
		}

		claim, _ := deps.LobbyKeys.Claim(lobbyKey)

		value := deps.Tickets.Issue(connection.RealRemoteAddr(r), claim.DesiredNumPlayers)
		http.SetCookie(w, &http.Cookie{
			Name:     connection.TicketCookieName,
			Value:    value,
			Path:     "/",
			MaxAge:   int(cfg.TokenLifetime.Seconds()),
			HttpOnly: true,
			Secure:   cfg.Scheme() == "https",
			SameSite: http.SameSiteStrictMode,
		})

		err := serveDynamicFile(cfg, w, "play.html", map[string]string{
			"TOKEN_PLACEHOLDER":   value,
			"PSTR_PLACEHOLDER":    lobbyKey,
			"PMODE_PLACEHOLDER":   "private",
			"PLAYERS_PLACEHOLDER": strconv.Itoa(claim.DesiredNumPlayers),
		}, cspWasm)
		if err != nil {
			writeErrorPage(cfg, w, statusFor(err), "Not Found", "Page not found.")
		}
	}
}

// serveLobbyKeyQR renders a PNG QR code of the absolute /g/:lobbyKey URL, so
// a private-lobby host can share a join link across a room by holding up a
// phone instead of reading the link aloud.
func serveLobbyKeyQR(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		lobbyKey := p.ByName("lobbyKey")
		if len(lobbyKey) > 32 || !deps.LobbyKeys.Contains(lobbyKey) {
			writeErrorPage(cfg, w, http.StatusNotFound, "Not Found", "This lobby no longer exists.")
			return
		}

		scheme := cfg.Scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		url := scheme + "://" + r.Host + cfg.Prefix + "/g/" + lobbyKey

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		applyCSP(w, cspDefault)
		_, err = w.Write(png)
		reportIfErr(cfg, err, "serveLobbyKeyQR")
	}
}
