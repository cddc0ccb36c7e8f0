package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchrelay/server/internal/connection"
)

func TestAddPlayerAndIsFull(t *testing.T) {
	l := New("default", 2)
	assert.True(t, l.IsEmpty())
	assert.False(t, l.IsFull())

	l.AddPlayer(&connection.Conn{ID: "a"})
	assert.Equal(t, 1, l.Size())
	assert.False(t, l.IsFull())

	l.AddPlayer(&connection.Conn{ID: "b"})
	assert.True(t, l.IsFull())
}

func TestRemovePlayer(t *testing.T) {
	l := New("default", 2)
	l.AddPlayer(&connection.Conn{ID: "a"})
	l.AddPlayer(&connection.Conn{ID: "b"})

	l.RemovePlayer("a")
	assert.Equal(t, 1, l.Size())
	assert.Equal(t, "b", l.Players[0].ID)

	l.RemovePlayer("does-not-exist")
	assert.Equal(t, 1, l.Size())
}

func TestShuffledSeatsIsPermutation(t *testing.T) {
	seats := shuffledSeats(4)
	seen := make(map[int]bool)
	for _, s := range seats {
		seen[s] = true
	}
	assert.Len(t, seen, 4)
	for i := 0; i < 4; i++ {
		assert.True(t, seen[i])
	}
}
