package httpapi

import (
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/matchrelay/server/internal/config"
)

// ReleaseVersion is reported by GET /version.
const ReleaseVersion = "0.1.0"

func serveVersion(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		applyCSP(w, cspDefault)
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("matchrelay v" + ReleaseVersion + "\n"))
		reportIfErr(cfg, err, "serveVersion")
	}
}

func serveHealthCheck(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		applyCSP(w, cspDefault)
		_, err := w.Write([]byte("Ok\n"))
		reportIfErr(cfg, err, "serveHealthCheck")
	}
}

const robotsBody = `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

func serveRobots(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(robotsBody)))
		securityHeaders(cfg, w)
		applyCSP(w, cspDefault)
		_, err := w.Write([]byte(robotsBody))
		reportIfErr(cfg, err, "serveRobots")
	}
}

func serveFavicons(cfg *config.Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		name := p.ByName("favicon")
		if name == "" {
			name = "favicon.svg"
		}
		for len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
		if err := serveFavicon(cfg, w, name); err != nil {
			return
		}
	}
}

// registerProfileHandlers wires net/http/pprof in under prefix, gated behind
// --profile since it exposes goroutine/heap dumps.
func registerProfileHandlers(prefix string, mux *httprouter.Router) {
	mux.Handler("GET", prefix+"/pprof/allocs", pprof.Handler("allocs"))
	mux.Handler("GET", prefix+"/pprof/block", pprof.Handler("block"))
	mux.Handler("GET", prefix+"/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handler("GET", prefix+"/pprof/heap", pprof.Handler("heap"))
	mux.Handler("GET", prefix+"/pprof/mutex", pprof.Handler("mutex"))
	mux.Handler("GET", prefix+"/pprof/threadcreate", pprof.Handler("threadcreate"))
	mux.HandlerFunc("GET", prefix+"/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", prefix+"/pprof/profile", pprof.Profile)
	mux.HandlerFunc("GET", prefix+"/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", prefix+"/pprof/trace", pprof.Trace)
}
