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

	"order-tracker-api/internal/config"
	"order-tracker-api/internal/handlers"
	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/ordercache"
	"order-tracker-api/internal/realtime"
	"order-tracker-api/internal/routes"
	"order-tracker-api/internal/store"
	"order-tracker-api/internal/upstream"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired cache records and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s expired records\n", humanize.Comma(n))
			return nil
		},
	}
}

func newRecentCmd() *cobra.Command {
	var (
		prefix string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently cached keys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			keys, err := st.ListKeys(cmd.Context(), prefix, limit)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", upstream.TrackingPrefix, "key prefix to match")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of keys (0 for all)")
	return cmd
}

// setup loads the config and configures the default logger.
func setup() (config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           cfg.Level(),
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	log.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.Store, error) {
	opts := cfg.StoreOptions()
	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if opts.Remote() {
		logger.Info("using libsql cache store", "url", opts.LibSQLURL)
	} else {
		logger.Info("using sqlite cache store", "path", opts.Path)
	}
	return st, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("order_tracker", reg)

	cache := ordercache.New(st, m, logger)
	if n, err := cache.PurgeExpired(ctx); err != nil {
		logger.Warn("startup purge failed", "err", err)
	} else {
		logger.Info("startup purge", "removed", n)
	}

	h := &handlers.Handler{
		Cache:    cache,
		Orders:   upstream.NewOrderClient(cfg.OrderAPIURL, cfg.UpstreamTimeout, m, logger),
		Tracking: upstream.NewTrackingClient(cfg.TrackingAPIURL, cfg.UpstreamTimeout, m, logger),
		Hub:      realtime.NewHub(),
		Logger:   logger,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routes.SetupRoutes(h, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting", "addr", srv.Addr)
	logger.Info("API endpoints:")
	logger.Info("  POST   /api/orders")
	logger.Info("  GET    /api/tracking")
	logger.Info("  GET    /api/tracking/:code")
	logger.Info("  GET    /api/events")
	logger.Info("  GET    /health")
	logger.Info("  GET    /metrics")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
