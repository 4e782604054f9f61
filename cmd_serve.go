package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackmatch-srv/internal/config"
	"trackmatch-srv/internal/database"
	"trackmatch-srv/internal/importer"
)

const shutdownGrace = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP import server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *database.Store) error {
				if addr != "" {
					cfg.Server.Addr = addr
				}
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				srcs, err := streamingSources(runCtx, cfg)
				if err != nil {
					return err
				}
				if !cfg.SpotifyEnabled() {
					logger.Warn("spotify imports disabled: SPOTIFY_ID and SPOTIFY_SECRET are not set")
				}

				srv := &server{
					store: store,
					newImporter: func(fn importer.ProgressFunc) (*importer.Importer, error) {
						return newImporter(cfg, store, logger, fn)
					},
					sources:     srcs,
					defaultMode: cfg.Matching.Mode,
					logger:      logger,
				}
				return listenAndServe(runCtx, cfg.Server.Addr, srv.routes(), logger)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

func listenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trackmatch listening", slog.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
