package httpapi

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/matchrelay/server/internal/config"
)

// NewRouter wires every route this server exposes: dynamic action/lobby/
// websocket routes, the ambient endpoints (healthz, version, robots,
// favicons, pprof), and the --test-gated static file server.
func NewRouter(cfg *config.Config, deps Deps) *httprouter.Router {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, recovered any) {
		logf(cfg, "PANIC: %v", recovered)
		writeErrorPage(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")
	}

	prefix := cfg.Prefix

	mux.Handler(http.MethodPost, prefix+"/action", serveActionDispatch(cfg, deps))
	for _, mode := range []actionMode{modePublic, modePrivate, modeFourPlayer, modeFourPlayerPrivate, modePractice} {
		mux.Handler(http.MethodPost, prefix+"/"+mode.name, serveAction(mode)(cfg, deps))
	}

	mux.Handler(http.MethodGet, prefix+"/g/:lobbyKey", serveLobbyKey(cfg, deps))
	mux.Handler(http.MethodGet, prefix+"/g/:lobbyKey/qr", serveLobbyKeyQR(cfg, deps))

	mux.Handler(http.MethodGet, prefix+"/game", serveGame(cfg, deps, 2))
	mux.Handler(http.MethodGet, prefix+"/fourplayergame", serveGame(cfg, deps, 4))
	mux.Handler(http.MethodGet, prefix+"/playercount", servePlayercount(cfg, deps))

	mux.Handler(http.MethodGet, prefix+"/serverinfo", serveServerInfo(cfg, deps))
	mux.Handler(http.MethodGet, prefix+"/healthz", serveHealthCheck(cfg))
	mux.Handler(http.MethodGet, prefix+"/version", serveVersion(cfg))
	mux.Handler(http.MethodGet, prefix+"/robots.txt", serveRobots(cfg))
	mux.Handler(http.MethodGet, prefix+"/favicons/*favicon", serveFavicons(cfg))

	if cfg.Profile {
		registerProfileHandlers(prefix, mux)
	}

	mux.Handler(http.MethodGet, prefix+"/", serveIndex(cfg))
	mux.Handler(http.MethodGet, prefix+"/static/*filepath", serveStatic(cfg))

	return mux
}

// serveIndex serves the homepage by delegating to serveStaticFile, gated by
// --test, since production deployments front this server with a CDN/reverse
// proxy that serves the homepage directly.
func serveIndex(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := serveStaticFile(cfg, w, "index.html"); err != nil {
			writeErrorPage(cfg, w, statusFor(err), "Not Found", "Page not found.")
		}
	}
}

func serveStatic(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		filePath := strings.TrimPrefix(p.ByName("filepath"), "/")
		if err := serveStaticFile(cfg, w, filePath); err != nil {
			writeErrorPage(cfg, w, statusFor(err), "Not Found", "Page not found.")
		}
	}
}
