// Package app wires config, captcha, tickets, matchmakers, live counters,
// and the HTTP router into one running server, and owns its start/stop
// lifecycle as an errgroup-supervised root owning two Matchmaker actors
// alongside the HTTP listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchrelay/server/internal/captcha"
	"github.com/matchrelay/server/internal/config"
	"github.com/matchrelay/server/internal/connection"
	"github.com/matchrelay/server/internal/httpapi"
	"github.com/matchrelay/server/internal/live"
	"github.com/matchrelay/server/internal/lobby"
	"github.com/matchrelay/server/internal/matchmaker"
	"github.com/matchrelay/server/internal/ticket"
)

const shutdownGrace = 5 * time.Second

// Run builds the full dependency graph from cfg, starts both matchmaker
// actors and the HTTP listener, and blocks until ctx is canceled, then
// drains with a bounded grace period so the listener and both matchmaker
// actors stop cleanly together via errgroup.
func Run(ctx context.Context, cfg *config.Config) error {
	liveCounters := live.New()

	gateway := buildCaptchaGateway(cfg)

	tickets := ticket.NewTickets(cfg.TokenLength, cfg.TokenLifetime)
	defer tickets.Close()
	lobbyKeys := ticket.NewLobbyKeys(cfg.LobbyKeyBytes, cfg.LobbyKeyLifetime)
	defer lobbyKeys.Close()

	group, gctx := errgroup.WithContext(ctx)

	matchmakers := map[int]*matchmaker.Matchmaker{}
	for _, numPlayers := range []int{2, 4} {
		mm := matchmaker.New(matchmaker.Config{
			DesiredNumPlayers: numPlayers,
			BufferSize:        cfg.MatchmakerBufferSize,
			ServiceSleep:      cfg.MatchmakerServiceSleep,
			Engine: lobby.Config{
				StartupTimeout: cfg.StartupTimeout,
				FrameDelay:     cfg.FrameDelay,
				FrameTimeout:   cfg.FrameTimeout,
				GameLifetime:   cfg.GameLifetime,
			},
		}, connLookup(liveCounters), liveCounters.IncGamesPlayed)
		matchmakers[numPlayers] = mm

		group.Go(func() error { return mm.Run(gctx) })
	}

	deps := httpapi.Deps{
		Captcha:     gateway,
		Tickets:     tickets,
		LobbyKeys:   lobbyKeys,
		Live:        liveCounters,
		Matchmakers: matchmakers,
	}

	srv := buildServer(cfg, deps)

	group.Go(func() error {
		return serveUntilCanceled(gctx, cfg, srv)
	})

	return group.Wait()
}

// connLookup adapts live.Counters.Lookup to matchmaker.ConnLookup: every
// Conn the registrar holds was constructed by connection.Admit as a
// *connection.Conn, so the type assertion only fails for an unknown id.
func connLookup(liveCounters *live.Counters) matchmaker.ConnLookup {
	return func(id string) (*connection.Conn, bool) {
		c, ok := liveCounters.Lookup(id)
		if !ok {
			return nil, false
		}
		conn, ok := c.(*connection.Conn)
		return conn, ok
	}
}

// buildCaptchaGateway picks the enterprise REST gateway in production and a
// noop gateway under --test.
func buildCaptchaGateway(cfg *config.Config) captcha.Gateway {
	if cfg.Test {
		return captcha.NewNoopGateway()
	}
	return captcha.NewEnterpriseGateway(cfg.CaptchaProjectID, cfg.CaptchaSiteKey, cfg.CaptchaAPIKey, cfg.FrameTimeout)
}

func buildServer(cfg *config.Config, deps httpapi.Deps) *http.Server {
	mux := httpapi.NewRouter(cfg, deps)
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func serveUntilCanceled(ctx context.Context, cfg *config.Config, srv *http.Server) error {
	listenErrs := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrs <- err
			return
		}
		listenErrs <- nil
	}()

	select {
	case err := <-listenErrs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}
