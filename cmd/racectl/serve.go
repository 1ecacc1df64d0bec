package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/race-escrow/internal/health"
	"github.com/yourusername/race-escrow/internal/metrics"
	"github.com/yourusername/race-escrow/internal/scheduler"
)

const auditTimeout = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health checks and metrics and run the escrow audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			appLog.WithFields(logrus.Fields{
				"version":     Version,
				"environment": cfg.App.Environment,
				"backend":     cfg.Ledger.Backend,
				"program_id":  rt.program.ID().String(),
			}).Info("Starting race escrow service")

			srvCfg := health.Config{
				ServiceName: cfg.App.Name,
				Version:     Version,
				Commit:      GitCommit,
				Port:        cfg.Health.Port,
				Logger:      appLog,
				Ledger:      rt.backend,
			}
			if cfg.Metrics.Enabled {
				metrics.InitRegistry()
				srvCfg.Metrics = metrics.Handler()
				srvCfg.MetricsPath = cfg.Metrics.Path
			}

			var sched *scheduler.Scheduler
			if cfg.Monitor.Enabled {
				sched = scheduler.NewScheduler(rt.service, appLog)
				if err := sched.ScheduleAudit(cfg.Monitor.AuditSchedule, auditTimeout); err != nil {
					return err
				}
				srvCfg.Audit = sched
				if err := sched.AuditNow(auditTimeout); err != nil {
					appLog.WithError(err).Warn("Initial escrow audit failed")
				}
			}

			srv := health.NewServer(srvCfg)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			if sched != nil {
				if err := sched.Start(); err != nil {
					return err
				}
			}
			srv.SetReady(true)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				appLog.WithField("signal", sig).Info("Shutdown signal received")
			case <-ctx.Done():
				appLog.Info("Context cancelled")
			}

			srv.SetReady(false)
			if sched != nil {
				if err := sched.Stop(); err != nil {
					appLog.WithError(err).Warn("Scheduler did not stop cleanly")
				}
			}
			if err := srv.Shutdown(); err != nil {
				appLog.WithError(err).Warn("Health server did not stop cleanly")
			}
			appLog.Info("Race escrow service stopped")
			return nil
		})
	},
}
