package live

import (
	"context"
	"strconv"
	"time"

	"github.com/matchrelay/server/internal/shield"
)

// Pump is the minimal socket surface the /playercount handler needs: send a
// text frame, and report when the peer has gone away. connection.Conn
// satisfies this without live needing to import that package.
type Pump interface {
	SendText(s string) error
	Done() <-chan struct{}
}

// RunPlayercount drives one /playercount websocket connection end to end:
// bump the homepage-viewer counter, push "Players Online: {n}" every refresh
// interval up to maxRefreshes times, then shield the decrement so a
// cancelled handler can never skip it.
func RunPlayercount(ctx context.Context, c *Counters, p Pump, refresh time.Duration, maxRefreshes int) {
	c.IncHomepage()
	defer shield.Run(func(context.Context) { c.DecHomepage() })

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	if err := p.SendText("Players Online: " + strconv.Itoa(c.PlayersOnline())); err != nil {
		return
	}

	for i := 0; i < maxRefreshes; i++ {
		select {
		case <-ctx.Done():
			return
		case <-p.Done():
			return
		case <-ticker.C:
			if err := p.SendText("Players Online: " + strconv.Itoa(c.PlayersOnline())); err != nil {
				return
			}
		}
	}
}
