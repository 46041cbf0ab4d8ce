package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/db"
	"github.com/rpattn/engcrm/internal/httpapi"
)

var (
	serveInMemory bool
	serveMigrate  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveMigrate && !serveInMemory {
			if err := db.RunMigrations(cfg.Database, db.MigrateUp); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}

		reg, err := loadRegistry(cfg.Registry.Path)
		if err != nil {
			return err
		}
		s, err := openStores(ctx, cfg.Database, serveInMemory)
		if err != nil {
			return err
		}
		defer s.close()

		handler := httpapi.NewHandler(newSmartListService(reg, s), reg, s.entities, logger, cfg.SmartLists.RefreshConcurrency)
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      httpapi.NewRouter(handler, logger, cfg.Server.AllowedOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			return fmt.Errorf("failed to start server: %w", err)
		case <-ctx.Done():
		}
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "use process-local stores instead of Postgres")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
