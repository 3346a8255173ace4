package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/api"
	"github.com/sells-group/market-match/internal/events"
	"github.com/sells-group/market-match/internal/matching"
	"github.com/sells-group/market-match/internal/monitoring"
	"github.com/sells-group/market-match/internal/scheduler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, matching workers and listing maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		dispatcher := matching.NewDispatcher(env.Orchestrator, cfg.Matching.Workers, cfg.Matching.QueueSize)
		defer dispatcher.Close()

		sched := scheduler.New(time.Duration(cfg.Sync.JobTimeoutSecs) * time.Second)
		for _, job := range scheduler.MaintenanceJobs(env.Synchronizer, cfg.Sync.SweepSchedule, cfg.Sync.ReconcileSchedule) {
			if err := sched.Add(ctx, job); err != nil {
				return err
			}
		}
		sched.Start()
		defer sched.Stop()

		if cfg.Kafka.Enabled {
			consumer := events.NewConsumer(
				events.NewReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic),
				dispatcher, env.Synchronizer,
			)
			defer consumer.Close() //nolint:errcheck
			go func() {
				if err := consumer.Run(ctx); err != nil {
					zap.L().Error("listing event consumer stopped", zap.Error(err))
					stop()
				}
			}()
		}

		if cfg.Monitoring.Enabled {
			var breaker monitoring.BreakerSource
			if env.Breaker != nil {
				breaker = env.Breaker
			}
			collector := monitoring.NewCollector(dispatcher, env.Store, breaker)
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: api.NewServer(api.Deps{
				Preferences:  env.Preferences,
				Matches:      env.Matches,
				Dispatcher:   dispatcher,
				Synchronizer: env.Synchronizer,
				Health:       env.Store,
				CORSOrigins:  cfg.Server.CORSOrigins,
			}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.Int("workers", cfg.Matching.Workers),
			zap.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
