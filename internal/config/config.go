// Package config defines the server's runtime configuration and the
// cobra/viper/pflag wiring used to populate it from flags and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default tuning constants for matchmaking, handshake, and relay pacing.
const (
	DefaultFrameDelay              = 10 * time.Millisecond
	DefaultFrameTimeout            = 5 * time.Second
	DefaultStartupTimeout          = 300 * time.Second
	DefaultGameLifetime            = 1203 * time.Second
	DefaultTokenLifetime           = 15 * time.Second
	DefaultTokenLength             = 32
	DefaultLobbyKeyLifetime        = 180 * time.Second
	DefaultLobbyKeyBytes           = 12
	DefaultNumPlayersRefreshTime   = 10 * time.Second
	DefaultMaxNumPlayersRefreshes  = 360
	DefaultMatchmakerBufferSize    = 64
	DefaultMatchmakerServiceSleep  = time.Millisecond
	DefaultRecaptchaScoreThreshold = 0.5
)

// Config holds every knob the server needs at startup: bind/port/TLS/prefix/
// verbose server plumbing plus the captcha gateway and the
// matchmaking/relay timing model.
type Config struct {
	Bind    string
	Port    int
	Prefix  string
	Profile bool
	Verbose bool
	Test    bool // disables captcha, serves static files under "/"
	Version bool

	TLSCert string
	TLSKey  string

	CaptchaProjectID string
	CaptchaSiteKey   string
	CaptchaAPIKey    string

	FrameDelay             time.Duration
	FrameTimeout           time.Duration
	StartupTimeout         time.Duration
	GameLifetime           time.Duration
	TokenLifetime          time.Duration
	TokenLength            int
	LobbyKeyLifetime       time.Duration
	LobbyKeyBytes          int
	NumPlayersRefreshTime  time.Duration
	MaxNumPlayersRefreshes int
	MatchmakerBufferSize   int
	MatchmakerServiceSleep time.Duration
	RecaptchaScoreMin      float64

	BindTicketIP bool
}

func defaults() *Config {
	return &Config{
		Bind:                   "0.0.0.0",
		Port:                   8080,
		FrameDelay:             DefaultFrameDelay,
		FrameTimeout:           DefaultFrameTimeout,
		StartupTimeout:         DefaultStartupTimeout,
		GameLifetime:           DefaultGameLifetime,
		TokenLifetime:          DefaultTokenLifetime,
		TokenLength:            DefaultTokenLength,
		LobbyKeyLifetime:       DefaultLobbyKeyLifetime,
		LobbyKeyBytes:          DefaultLobbyKeyBytes,
		NumPlayersRefreshTime:  DefaultNumPlayersRefreshTime,
		MaxNumPlayersRefreshes: DefaultMaxNumPlayersRefreshes,
		MatchmakerBufferSize:   DefaultMatchmakerBufferSize,
		MatchmakerServiceSleep: DefaultMatchmakerServiceSleep,
		RecaptchaScoreMin:      DefaultRecaptchaScoreThreshold,
	}
}

// Validate checks startup invariants: TLS cert/key must come in a pair, the
// port must be in-range, and captcha credentials must be present unless
// --test disables the gateway.
func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if !c.Test && (c.CaptchaProjectID == "" || c.CaptchaSiteKey == "" || c.CaptchaAPIKey == "") {
		return errors.New("--captcha-project-id, --captcha-site-key, and --captcha-api-key are required unless --test is set")
	}
	return nil
}

// Scheme returns "https" if TLS is configured, "http" otherwise.
func (c *Config) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}

// NewCommand builds the cobra root command, binding flags through viper with
// an ARENA_ environment prefix.
func NewCommand(cfg *Config, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	*cfg = *defaults()

	v := viper.New()
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "matchrelay",
		Short:         "Matchmaking and relay server for a real-time two- or four-player browser game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd, args)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: ARENA_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: ARENA_PORT)")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "path to prepend to all URLs, for use behind reverse proxy (env: ARENA_PREFIX)")
	fs.BoolVar(&cfg.Profile, "profile", cfg.Profile, "register net/http/pprof handlers (env: ARENA_PROFILE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "display additional output (env: ARENA_VERBOSE)")
	fs.BoolVar(&cfg.Test, "test", cfg.Test, "disable captcha and serve static files under / (env: ARENA_TEST)")
	fs.BoolVarP(&cfg.Version, "version", "V", cfg.Version, "parsed into Config.Version, which nothing reads: the server neither prints a version nor exits (env: ARENA_VERSION)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "path to tls certificate (env: ARENA_TLS_CERT)")
	fs.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "path to tls keyfile (env: ARENA_TLS_KEY)")
	fs.StringVar(&cfg.CaptchaProjectID, "captcha-project-id", cfg.CaptchaProjectID, "Google Cloud project id for reCAPTCHA Enterprise (env: ARENA_CAPTCHA_PROJECT_ID)")
	fs.StringVar(&cfg.CaptchaSiteKey, "captcha-site-key", cfg.CaptchaSiteKey, "reCAPTCHA Enterprise site key (env: ARENA_CAPTCHA_SITE_KEY)")
	fs.StringVar(&cfg.CaptchaAPIKey, "captcha-api-key", cfg.CaptchaAPIKey, "API key authenticating reCAPTCHA Enterprise REST calls (env: ARENA_CAPTCHA_API_KEY)")
	fs.DurationVar(&cfg.FrameDelay, "frame-delay", cfg.FrameDelay, "pacing delay between relayed frames (env: ARENA_FRAME_DELAY)")
	fs.DurationVar(&cfg.FrameTimeout, "frame-timeout", cfg.FrameTimeout, "deadline for a single frame send/receive (env: ARENA_FRAME_TIMEOUT)")
	fs.DurationVar(&cfg.StartupTimeout, "startup-timeout", cfg.StartupTimeout, "deadline for matchmaking plus handshake (env: ARENA_STARTUP_TIMEOUT)")
	fs.DurationVar(&cfg.GameLifetime, "game-lifetime", cfg.GameLifetime, "total lifetime of a started game (env: ARENA_GAME_LIFETIME)")
	fs.DurationVar(&cfg.TokenLifetime, "token-lifetime", cfg.TokenLifetime, "ticket lifetime (env: ARENA_TOKEN_LIFETIME)")
	fs.DurationVar(&cfg.LobbyKeyLifetime, "lobby-key-lifetime", cfg.LobbyKeyLifetime, "lobby key lifetime (env: ARENA_LOBBY_KEY_LIFETIME)")
	fs.BoolVar(&cfg.BindTicketIP, "bind-ticket-ip", cfg.BindTicketIP, "require a ticket to be consumed from the remote address it was issued to (env: ARENA_BIND_TICKET_IP)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
