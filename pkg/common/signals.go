package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandrolain/userkit/pkg/toolutil"
)

// SetupGracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
// The cancel function releases the signal handler and should be deferred.
func SetupGracefulShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigc:
			toolutil.Logger().Info("Received signal, shutting down gracefully", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()

	return ctx, cancel
}
