package httpapi

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/matchrelay/server/internal/config"
)

const logDate = "2006-01-02T15:04:05.000-07:00"

// Sentinel errors the route handlers return; statusFor maps each to the
// HTTP status the client sees.
var (
	errBadRequest   = errors.New("httpapi: bad request")
	errUnauthorized = errors.New("httpapi: unauthorized")
	errNotFound     = errors.New("httpapi: not found")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// logf logs only when cfg.Verbose is set.
func logf(cfg *config.Config, format string, args ...any) {
	if !cfg.Verbose {
		return
	}
	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// newPage builds a minimal inline-styled error page for handler and
// panic-recovery failures.
func newPage(title, body string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(`<link rel="icon" type="image/svg+xml" href="/favicons/favicon.svg">`)
	b.WriteString(`<style>html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	b.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	b.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))
	return b.String()
}

func writeErrorPage(cfg *config.Config, w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(cfg, w)
	applyCSP(w, cspDefault)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(newPage(title, body)))
}

// reportIfErr logs a transport write failure, since nothing downstream
// consumes a channel of them and the handler has already written its
// response by the time the write fails.
func reportIfErr(cfg *config.Config, err error, context string) {
	if err == nil {
		return
	}
	logf(cfg, "ERROR: %s: %v", context, err)
}
