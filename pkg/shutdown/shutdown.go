package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatd/pkg/logger"
)

// Abort logs a fatal startup error and exits. Used before the HTTP server
// is up, when there is nothing to drain.
func Abort(contextMsg string, err error) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	os.Exit(2)
}

// Graceful blocks until SIGINT or SIGTERM, then drains the HTTP server and
// runs the given closers in order. Each closer failure is logged but does
// not stop the remaining ones.
func Graceful(srv *http.Server, timeout time.Duration, closers ...func() error) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	sig := <-ch
	logger.Info("shutdown_signal", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}
	logger.Info("shutdown_complete")
}
