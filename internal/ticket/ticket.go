// Package ticket mints and validates the two capability values in the
// system: Tickets (one-shot websocket admission) and Lobby Keys (private
// room identifiers). Both are backed by an internal/registry.Registry.
package ticket

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matchrelay/server/internal/registry"
)

// Claim is the value stored in the Ticket registry: who it was issued to
// (for optional IP binding) and which matchmaker size it admits into.
type Claim struct {
	IssuedTo          string
	DesiredNumPlayers int
}

// LobbyKeyClaim is the value stored in the Lobby Key registry.
type LobbyKeyClaim struct {
	DesiredNumPlayers int
}

// Tickets wraps a Registry of Ticket claims keyed by the opaque ticket
// value, a fixed-length lowercase-hex string (32 characters, one UUID's
// worth with the dashes stripped).
type Tickets struct {
	reg    *registry.Registry[string, Claim]
	length int
	ttl    time.Duration
}

// NewTickets constructs a Tickets registry. length should equal
// config.Config.TokenLength (32 by default); new values are always 32 hex
// characters (one UUID's worth) regardless of length, since length only
// governs what the Admitter accepts on the wire.
func NewTickets(length int, ttl time.Duration) *Tickets {
	return &Tickets{reg: registry.New[string, Claim](), length: length, ttl: ttl}
}

// Issue mints a new ticket and schedules its removal after the configured
// TTL, returning the opaque value to hand to the client.
func (t *Tickets) Issue(issuedTo string, desiredNumPlayers int) string {
	value := strings.ReplaceAll(uuid.New().String(), "-", "")
	t.reg.Insert(value, Claim{IssuedTo: issuedTo, DesiredNumPlayers: desiredNumPlayers}, t.ttl)
	return value
}

// TakeIfPresent consumes a ticket exactly once.
func (t *Tickets) TakeIfPresent(value string) (Claim, bool) {
	return t.reg.TakeIfPresent(value)
}

// Len reports how many tickets are currently outstanding.
func (t *Tickets) Len() int {
	return t.reg.Len()
}

// ExpectedLength is the wire length every ticket must have.
func (t *Tickets) ExpectedLength() int {
	return t.length
}

// Close stops all pending expiry timers.
func (t *Tickets) Close() {
	t.reg.Close()
}

// LobbyKeys wraps a Registry of Lobby Key claims keyed by a URL-safe random
// string.
type LobbyKeys struct {
	reg   *registry.Registry[string, LobbyKeyClaim]
	bytes int
	ttl   time.Duration
}

// NewLobbyKeys constructs a LobbyKeys registry.
func NewLobbyKeys(bytesLen int, ttl time.Duration) *LobbyKeys {
	return &LobbyKeys{reg: registry.New[string, LobbyKeyClaim](), bytes: bytesLen, ttl: ttl}
}

// Issue mints a new lobby key for the given desired lobby size.
func (k *LobbyKeys) Issue(desiredNumPlayers int) (string, error) {
	buf := make([]byte, k.bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := base64.RawURLEncoding.EncodeToString(buf)
	k.reg.Insert(value, LobbyKeyClaim{DesiredNumPlayers: desiredNumPlayers}, k.ttl)
	return value, nil
}

// Contains reports whether a key is currently valid, without consuming it —
// used by the HTTP layer to validate GET /g/:lobbyKey. Key expiry does not
// affect a Lobby that has already started, so this is deliberately a peek,
// never a take.
func (k *LobbyKeys) Contains(value string) bool {
	return k.reg.Contains(value)
}

// Claim returns the claim for a valid key without consuming it.
func (k *LobbyKeys) Claim(value string) (LobbyKeyClaim, bool) {
	return k.reg.Peek(value)
}

// Len reports how many lobby keys are currently outstanding.
func (k *LobbyKeys) Len() int {
	return k.reg.Len()
}

// Close stops all pending expiry timers.
func (k *LobbyKeys) Close() {
	k.reg.Close()
}
