package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/matchrelay/server/internal/config"
)

// serveServerInfo reports the live.Snapshot as JSON.
func serveServerInfo(cfg *config.Config, deps Deps) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		snapshot := deps.Live.BuildSnapshot(deps.Tickets, deps.LobbyKeys, deps.queueSizers()...)

		body, err := json.Marshal(snapshot)
		if err != nil {
			writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(cfg, w)
		applyCSP(w, cspDefault)
		_, err = w.Write(body)
		reportIfErr(cfg, err, "serveServerInfo")
	}
}
