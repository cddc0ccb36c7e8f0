package httpapi

import (
	"net/http"

	"github.com/matchrelay/server/internal/config"
)

// cspProfile selects which Content-Security-Policy string a response gets:
// a default policy, and a wasm variant (script-src 'unsafe-eval') for pages
// that run a wasm game client.
type cspProfile int

const (
	cspDefault cspProfile = iota
	cspWasm
)

var cspPolicies = map[cspProfile]string{
	cspDefault: "default-src 'self' https://fonts.gstatic.com/; " +
		"script-src 'self' https://www.recaptcha.net/recaptcha/ https://www.gstatic.com/recaptcha/; " +
		"img-src 'self'; " +
		"frame-src 'self' https://www.recaptcha.net/recaptcha/; " +
		"connect-src 'self' https://fonts.googleapis.com/ https://fonts.gstatic.com/; " +
		"style-src 'self' https://fonts.googleapis.com/; " +
		"frame-ancestors 'self';",
	cspWasm: "default-src 'self' https://fonts.gstatic.com/; " +
		"script-src 'unsafe-eval' 'self' https://www.recaptcha.net/recaptcha/ https://www.gstatic.com/recaptcha/; " +
		"img-src 'self'; " +
		"frame-src 'self' https://www.recaptcha.net/recaptcha/; " +
		"connect-src 'self' https://fonts.googleapis.com/ https://fonts.gstatic.com/; " +
		"style-src 'self' https://fonts.googleapis.com/; " +
		"frame-ancestors 'self';",
}

// securityHeaders sets the same baseline headers on every response. The
// Content-Security-Policy line is excluded — callers set it themselves via
// applyCSP since it varies per page.
func securityHeaders(cfg *config.Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if cfg.Scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

// applyCSP sets the Content-Security-Policy header for the given profile.
func applyCSP(w http.ResponseWriter, profile cspProfile) {
	w.Header().Set("Content-Security-Policy", cspPolicies[profile])
}
