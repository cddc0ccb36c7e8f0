package ticket

import (
	"testing"
	"time"
)

func TestTicketsIssueAndConsumeOnce(t *testing.T) {
	tickets := NewTickets(32, time.Minute)

	value := tickets.Issue("1.2.3.4:5", 2)
	if len(value) != 32 {
		t.Fatalf("expected 32-char ticket, got %d chars: %q", len(value), value)
	}

	claim, ok := tickets.TakeIfPresent(value)
	if !ok {
		t.Fatal("expected ticket to be present")
	}
	if claim.IssuedTo != "1.2.3.4:5" || claim.DesiredNumPlayers != 2 {
		t.Fatalf("unexpected claim: %+v", claim)
	}

	if _, ok := tickets.TakeIfPresent(value); ok {
		t.Fatal("expected second consumption to fail")
	}
}

func TestTicketsExpire(t *testing.T) {
	tickets := NewTickets(32, 10*time.Millisecond)
	value := tickets.Issue("x", 2)

	time.Sleep(30 * time.Millisecond)

	if _, ok := tickets.TakeIfPresent(value); ok {
		t.Fatal("expected ticket to have expired")
	}
}

func TestLobbyKeysIssueAndPeek(t *testing.T) {
	keys := NewLobbyKeys(12, time.Minute)

	value, err := keys.Issue(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !keys.Contains(value) {
		t.Fatal("expected key to be valid")
	}

	claim, ok := keys.Claim(value)
	if !ok || claim.DesiredNumPlayers != 4 {
		t.Fatalf("unexpected claim: %+v ok=%v", claim, ok)
	}

	// Peeking must not consume the key.
	if !keys.Contains(value) {
		t.Fatal("expected key to remain valid after Claim peek")
	}
}
