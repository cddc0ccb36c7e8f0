package httpapi

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/matchrelay/server/internal/captcha"
	"github.com/matchrelay/server/internal/config"
	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/matchmaker"
)

// actionMode describes one /action?a=... variant (and its dedicated
// /public, /private, /fourplayer, /fourplayerprivate route). Each route
// stays a plain httprouter.Handle, built from a single parameterized
// constructor instead of four near-duplicate handlers.
type actionMode struct {
	name              string
	desiredNumPlayers int
	private           bool
	skipCaptcha       bool
}

var (
	modePublic            = actionMode{name: "public", desiredNumPlayers: 2}
	modePrivate           = actionMode{name: "private", desiredNumPlayers: 2, private: true}
	modeFourPlayer        = actionMode{name: "fourplayer", desiredNumPlayers: 4}
	modeFourPlayerPrivate = actionMode{name: "fourplayerprivate", desiredNumPlayers: 4, private: true}
	// modePractice serves the public play page (public pair-string, no
	// synthetic lobby ever built server-side): practice is a client-side-only
	// mode, so the "?m=" variant selector is read by the client straight out
	// of the URL and never needs to reach this handler.
	modePractice = actionMode{name: "practice", desiredNumPlayers: 2, skipCaptcha: true}
)

var actionModes = map[string]actionMode{
	modePublic.name:            modePublic,
	modePrivate.name:           modePrivate,
	modeFourPlayer.name:        modeFourPlayer,
	modeFourPlayerPrivate.name: modeFourPlayerPrivate,
}

// serveActionDispatch implements POST /action?a=..., reading the mode from
// the "a" query parameter.
func serveActionDispatch(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		mode, ok := actionModes[r.URL.Query().Get("a")]
		if !ok {
			writeErrorPage(cfg, w, http.StatusNotFound, "Not Found", "Unknown action.")
			return
		}
		serveAction(mode)(cfg, deps)(w, r, p)
	}
}

// serveAction builds the handler for one fixed mode, shared by
// serveActionDispatch (query-string routed) and the dedicated /public,
// /private, /fourplayer, /fourplayerprivate, /practice routes.
func serveAction(mode actionMode) func(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(cfg *config.Config, deps Deps) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
			if !cfg.Test && !mode.skipCaptcha {
				if err := r.ParseForm(); err != nil {
					writeErrorPage(cfg, w, http.StatusBadRequest, "Bad Request", "Malformed request body.")
					return
				}
				recaptchaToken := r.PostFormValue("recaptcha-token")
				if recaptchaToken == "" {
					writeErrorPage(cfg, w, http.StatusBadRequest, "Bad Request", "Missing captcha token.")
					return
				}
				verdict, err := deps.Captcha.Verify(r.Context(), recaptchaToken, mode.name)
				if err != nil {
					writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
					return
				}
				if !captcha.Accept(verdict, mode.name, cfg.RecaptchaScoreMin) {
					writeErrorPage(cfg, w, http.StatusUnauthorized, "Unauthorized", "Failed captcha.")
					return
				}
			}

			if mode.private {
				servePrivateLobby(cfg, deps, w, mode)
				return
			}
			servePublicTicket(cfg, deps, w, r, mode)
		}
	}
}

func servePublicTicket(cfg *config.Config, deps Deps, w http.ResponseWriter, r *http.Request, mode actionMode) {
	value := deps.Tickets.Issue(connection.RealRemoteAddr(r), mode.desiredNumPlayers)

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
		"PSTR_PLACEHOLDER":    matchmaker.PublicPairString,
		"PMODE_PLACEHOLDER":   mode.name,
		"PLAYERS_PLACEHOLDER": strconv.Itoa(mode.desiredNumPlayers),
	}, cspWasm)
	if err != nil {
		writeErrorPage(cfg, w, statusFor(err), "Not Found", "Page not found.")
	}
}

func servePrivateLobby(cfg *config.Config, deps Deps, w http.ResponseWriter, mode actionMode) {
	lobbyKey, err := deps.LobbyKeys.Issue(mode.desiredNumPlayers)
	if err != nil {
		writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
		return
	}

	err = serveDynamicFile(cfg, w, "private.html", map[string]string{
		"KEY_PLACEHOLDER":     lobbyKey,
		"PLAYERS_PLACEHOLDER": strconv.Itoa(mode.desiredNumPlayers),
	}, cspDefault)
	if err != nil {
		writeErrorPage(cfg, w, statusFor(err), "Not Found", "Page not found.")
	}
}
