// Package httpserver はコンテキストのキャンセルで停止する HTTP サーバーを提供します。
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/yourusername/login-gate/internal/logutil"
)

const shutdownTimeout = 30 * time.Second

// Serve は bind で handler を公開し、ctx がキャンセルされるとグレースフルに停止します。
// 停止による終了は nil を返します。
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		Addr:              bind,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return run(ctx, server, server.ListenAndServe)
}

func run(ctx context.Context, server *http.Server, listen func() error) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", server.Addr).Logger()

	errc := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		errc <- listen()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
