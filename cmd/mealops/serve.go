package mealops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/thorhanks/MealOps/internal/app"
	"github.com/thorhanks/MealOps/internal/db"
	"github.com/thorhanks/MealOps/internal/notify"
	"github.com/thorhanks/MealOps/internal/server"
)

const defaultAddr = "127.0.0.1:8080"

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and change notifications over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		if err := app.EnsureDBDir(path); err != nil {
			return err
		}
		addr := serveAddr
		if !cmd.Flags().Changed("addr") {
			if v := os.Getenv(app.EnvAddr); v != "" {
				addr = v
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handle := db.NewHandle(path, logger)
		defer handle.Close()
		sqldb, err := handle.Open(ctx)
		if err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		hub := notify.NewHub(logger)
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.NewRouter(sqldb, server.Options{Hub: hub, Logger: logger}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", addr, "db", path)
			errCh <- srv.ListenAndServe()
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Serving mealops API on http://%s/api\n", addr)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "Listen address (or set "+app.EnvAddr+")")
}
