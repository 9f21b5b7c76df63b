package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rental-scraper/api"
	"rental-scraper/scheduler"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the listings API and refresh on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("=== Rental Scraper starting ===")

	refresher, err := scheduler.NewRefresher(a.cache, a.cfg.RefreshInterval, a.logger)
	if err != nil {
		return err
	}
	refresher.Start(ctx)

	handler := api.NewHandler(a.cache, a.insights, a.promReg, a.logger)
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API listening on %s", a.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			refresher.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown: %v", err)
	}
	refresher.Stop(shutdownCtx)
	return nil
}
