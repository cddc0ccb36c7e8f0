// Package shield provides one primitive the matchmaking/relay lifecycle
// needs repeatedly: running a cleanup function so that the caller's own
// cancellation can never interrupt it.
package shield

import "context"

// Run executes fn to completion, detached from any context the caller might
// be cancelling. Use for counter decrements, registry removals, and other
// cleanup that must converge unconditionally regardless of why the caller
// is tearing down.
func Run(fn func(ctx context.Context)) {
	fn(context.Background())
}
