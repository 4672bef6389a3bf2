package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/gischat/internal/logger"
)

// Run serves srv until ctx is cancelled, then stops accepting requests and
// closes every websocket of hub. The first error of either step is returned.
func Run(ctx context.Context, srv *http.Server, hub *Hub, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return StartServer(srv, log)
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := hub.Config().ShutdownTimeout

		// Hijacked websocket connections are not tracked by http.Server, so
		// the hub closes them separately.
		errHTTP := ShutdownServer(srv, timeout, log)
		errHub := hub.Shutdown(timeout)
		if errHub != nil {
			log.Warn("Hub shutdown incomplete", logger.Error(errHub))
		}
		return errors.Join(errHTTP, errHub)
	})

	return g.Wait()
}
