package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/api"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	serveCmd.Flags().Bool("no-scheduler", false, "Disable the engagement sync scheduler")
	serveCmd.Flags().Bool("scenarios", false, "Enable the demo scenario endpoints (they wipe the database)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Unless disabled, the engagement sync scheduler runs
alongside it and reconciles the current month on every tick.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, stops the scheduler and closes the database.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		a.cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		a.cfg.Server.Port = port
	}
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

	handler := api.NewHandler(a.service, a.store, a.logger)
	if enabled, _ := cmd.Flags().GetBool("scenarios"); enabled {
		handler.Resetter = a.store
	}
	router := api.NewRouter(handler, a.cfg.Server.CORSOrigins)

	scheduler := api.NewSyncScheduler(a.service, a.logger)
	scheduler.CheckInterval = a.cfg.Scheduler.Interval
	scheduler.Enabled = a.cfg.Scheduler.Enabled && !noScheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", server.Addr), zap.String("db", a.cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
