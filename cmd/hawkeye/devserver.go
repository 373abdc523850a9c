package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polisai/hawkeye-go/internal/devserver"
	"github.com/polisai/hawkeye-go/internal/devstore"
	"github.com/polisai/hawkeye-go/internal/governance"
)

const (
	defaultDevAddr = ":8080"
	defaultDevDB   = "hawkeye-dev.db"
)

func newDevServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local ingestion endpoint backed by SQLite",
		Args:  cobra.NoArgs,
		RunE:  runDevServer,
	}

	cmd.Flags().String("addr", defaultDevAddr, "Address to listen on")
	cmd.Flags().String("db", defaultDevDB, "Path to the SQLite database")
	cmd.Flags().String("api-key", "", "API key clients must present (defaults to $HAWKEYE_API_KEY)")
	cmd.Flags().Int("rate-limit", 0, "Requests per second allowed per API key (0 disables limiting)")
	cmd.Flags().Int("burst", 0, "Burst size for --rate-limit (defaults to the rate)")
	return cmd
}

func runDevServer(cmd *cobra.Command, _ []string) error {
	logger, err := loggerFromFlags(cmd, cmd.ErrOrStderr(), "info", "text")
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	dbPath, _ := cmd.Flags().GetString("db")
	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("HAWKEYE_API_KEY")
	}
	if apiKey == "" {
		return errors.New("an API key is required (--api-key or HAWKEYE_API_KEY)")
	}

	rate, _ := cmd.Flags().GetInt("rate-limit")
	burst, _ := cmd.Flags().GetInt("burst")

	store, err := devstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []devserver.Option
	if rate > 0 {
		limiter := governance.NewRateLimiter(governance.RateLimiterConfig{RequestsPerSecond: rate, BurstSize: burst})
		go pruneLimiter(ctx, limiter)
		opts = append(opts, devserver.WithRateLimiter(limiter))
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           devserver.New(store, apiKey, logger, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting hawkeye devserver", "addr", addr, "db", dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("devserver failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down devserver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func pruneLimiter(ctx context.Context, limiter *governance.RateLimiter) {
	ticker := time.NewTicker(governance.DefaultIdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
