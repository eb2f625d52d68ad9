package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/audittrail/internal/platform"
	"github.com/aretw0/audittrail/pkg/core"
)

var (
	watchPattern string
	watchUser    string
	watchSite    string
	metricsAddr  string
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Audit edits made to a record directory",
	Long: `Watch a filesystem record store and audit every external edit: new files
are creations, changed files are saves and removed files are deletions.
Changes made while the watcher was not running are reconciled first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings
		s.Store.Adapter = "fs"
		if len(args) == 1 {
			s.Store.Path = args[0]
		}
		if s.Store.Path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			s.Store.Path = cwd
		}
		if watchPattern != "" {
			s.Store.Watch = watchPattern
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		rt, err := platform.New(ctx, s,
			platform.WithLogger(slog.Default()),
			platform.WithRegisterer(reg),
			platform.WithWatcherErrorHandler(func(err error) {
				slog.Warn("watcher error", "error", err)
			}),
		)
		if err != nil {
			return err
		}
		defer rt.Close()

		if metricsAddr != "" {
			serveMetrics(ctx, reg, metricsAddr)
		}

		actor := core.Actor{User: watchUser, Site: watchSite}
		if _, err := rt.Reconcile(ctx, actor); err != nil {
			return err
		}
		return rt.Watch(ctx, s.Store.Watch, actor)
	},
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func init() {
	watchCmd.Flags().StringVarP(&watchPattern, "pattern", "p", "", "Glob of watched files relative to the store root (default from settings)")
	watchCmd.Flags().StringVarP(&watchUser, "user", "u", "", "Acting user reported for external edits")
	watchCmd.Flags().StringVar(&watchSite, "site", "filesystem", "Site reported for external edits")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}
