package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeLobbyKeyUnknownKeyIs404(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()

	req := httptest.NewRequest(http.MethodGet, "/g/does-not-exist", nil)
	rec := httptest.NewRecorder()

	serveLobbyKey(cfg, deps)(rec, req, httprouter.Params{{Key: "lobbyKey", Value: "does-not-exist"}})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeLobbyKeyServesPlayPageAndTicket(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()

	key, err := deps.LobbyKeys.Issue(4)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/g/"+key, nil)
	rec := httptest.NewRecorder()

	serveLobbyKey(cfg, deps)(rec, req, httprouter.Params{{Key: "lobbyKey", Value: key}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), key, "the lobby key itself should appear as the pair-string placeholder substitution")

	var ticketCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "matchrelay_ticket" {
			ticketCookie = c
		}
	}
	require.NotNil(t, ticketCookie)

	claim, ok := deps.Tickets.TakeIfPresent(ticketCookie.Value)
	require.True(t, ok)
	assert.Equal(t, 4, claim.DesiredNumPlayers)

	// Peeking the lobby key must not have consumed it: a second joiner can
	// still use the same link.
	assert.True(t, deps.LobbyKeys.Contains(key))
}

func TestServeLobbyKeyQRRendersPNG(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()

	key, err := deps.LobbyKeys.Issue(2)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/g/"+key+"/qr", nil)
	rec := httptest.NewRecorder()

	serveLobbyKeyQR(cfg, deps)(rec, req, httprouter.Params{{Key: "lobbyKey", Value: key}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestServeLobbyKeyQRUnknownKeyIs404(t *testing.T) {
	cfg := testCfg()
	deps := testDeps()

	req := httptest.NewRequest(http.MethodGet, "/g/does-not-exist/qr", nil)
	rec := httptest.NewRecorder()

	serveLobbyKeyQR(cfg, deps)(rec, req, httprouter.Params{{Key: "lobbyKey", Value: "does-not-exist"}})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
