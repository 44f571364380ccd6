package bootstrap

import (
	"context"
	"net/http"

	"github.com/Domenick1991/parking/config"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Run serves handler on cfg.Address and blocks until ctx is canceled or the
// server fails. In-flight requests get cfg.ShutdownTimeout to finish.
func Run(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("address", cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen http %s", cfg.Address)
	case <-ctx.Done():
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown http server")
		}
		return nil
	}
}
