package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownContext derives a context canceled by the first SIGINT or SIGTERM.
// A second signal exits immediately. Transfers watch the context and stop at
// a part boundary, leaving a resumable upload session behind.
//
// The returned stop releases the signal handler.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		for n := 0; ; n++ {
			var sig os.Signal

			select {
			case sig = <-sigCh:
			case <-done:
				return
			case <-parent.Done():
				return
			}

			if n > 0 {
				logger.Warn("second signal, exiting", slog.String("signal", sig.String()))
				os.Exit(130)
			}

			logger.Info("signal received, stopping after the current part",
				slog.String("signal", sig.String()),
			)
			cancel()
		}
	}()

	return ctx, sync.OnceFunc(func() {
		close(done)
		cancel()
	})
}
