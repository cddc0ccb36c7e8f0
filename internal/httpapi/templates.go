package httpapi

import (
	"bytes"
	"embed"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matchrelay/server/internal/config"
)

//go:embed assets/*
var assets embed.FS

//go:embed static
var static embed.FS

//go:embed favicons
var favicons embed.FS

// contentTypes maps a file extension to the Content-Type header served with it.
var contentTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".txt":   "text/plain; charset=utf-8",
	".ico":   "image/x-icon",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json",
	".wasm":  "application/wasm",
	".woff2": "font/woff2",
}

func contentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// serveDynamicFile reads name out of assets, replaces every UTF-8 key in
// substitutions with its value, and writes the result with the requested
// CSP profile.
func serveDynamicFile(cfg *config.Config, w http.ResponseWriter, name string, substitutions map[string]string, profile cspProfile) error {
	data, err := assets.ReadFile("assets/" + name)
	if err != nil {
		return errNotFound
	}

	for key, value := range substitutions {
		data = bytes.ReplaceAll(data, []byte(key), []byte(value))
	}

	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	securityHeaders(cfg, w)
	applyCSP(w, profile)

	_, err = w.Write(data)
	return err
}

// serveStaticFile serves a file out of the static/ tree verbatim (aside
// from the noCaptchaRewrites applied when cfg.Test is set), gated entirely
// by cfg.Test: production deployments serve these assets from a CDN/reverse
// proxy in front of this server, not from the application itself.
func serveStaticFile(cfg *config.Config, w http.ResponseWriter, filePath string) error {
	if !cfg.Test {
		return errNotFound
	}

	data, err := static.ReadFile("static/" + filePath)
	if err != nil {
		return errNotFound
	}

	if rewrites, ok := noCaptchaRewrites[filePath]; ok {
		for key, value := range rewrites {
			data = bytes.ReplaceAll(data, []byte(key), []byte(value))
		}
	}

	w.Header().Set("Content-Type", contentTypeFor(filePath))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	securityHeaders(cfg, w)
	applyCSP(w, cspDefault)

	_, err = w.Write(data)
	return err
}

// noCaptchaRewrites swaps the captcha-driven button handlers for plain form
// submits on the two files that reference them, applied when --test serves
// static files with no captcha gate in front of /action.
var noCaptchaRewrites = map[string]map[string]string{
	"index.html": {
		`onclick='buttonClick("public")'`:  `onclick='document.getElementById("publicform").submit()'`,
		`onclick='buttonClick("private")'`: `onclick='document.getElementById("privateform").submit()'`,
	},
	"script/index.js": {},
}

func serveFavicon(cfg *config.Config, w http.ResponseWriter, name string) error {
	data, err := favicons.ReadFile("favicons/" + name)
	if err != nil {
		return errNotFound
	}
	w.Header().Set("Content-Type", contentTypeFor(name))
	securityHeaders(cfg, w)
	applyCSP(w, cspDefault)
	_, err = w.Write(data)
	return err
}
