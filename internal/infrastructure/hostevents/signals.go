package hostevents

import (
	"context"
	"os"
	"os/signal"

	"callbridge/internal/core/domain"
)

// WaitForShutdown blocks until one of sigs arrives or ctx is done. On a signal
// it dispatches beforeunload on target before returning the signal.
func WaitForShutdown(ctx context.Context, target *Target, sigs ...os.Signal) os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	select {
	case <-ctx.Done():
		return nil
	case sig := <-ch:
		target.logger.Infow("Shutdown signal received", "signal", sig.String())
		target.Dispatch(domain.HostBeforeUnload)
		return sig
	}
}
