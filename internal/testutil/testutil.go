package testutil

import "context"

// CanceledContext returns a context that is already cancelled, for
// exercising cancellation-propagation paths without a timer.
func CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
