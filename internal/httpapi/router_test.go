package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterServesAmbientRoutes(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()
	mux := NewRouter(cfg, deps)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/version", "/robots.txt", "/serverinfo"} {
		resp, err := http.Get(srv.URL + path)
		assert.NoError(t, err)
		if resp != nil {
			assert.Equal(t, http.StatusOK, resp.StatusCode, "GET %s", path)
			resp.Body.Close()
		}
	}
}

func TestRouterServesIndexUnderTestMode(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()
	mux := NewRouter(cfg, deps)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRouterIndexIsNotFoundOutsideTestMode(t *testing.T) {
	cfg := testCfg()
	cfg.Test = false
	deps := testDeps()
	mux := NewRouter(cfg, deps)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
