package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the auto-approval sweep.`,
}

var sweepWorkerCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Start the auto-approval sweep scheduler",
	Long:  `Periodically approves submitted expenses at or under the auto-approval threshold.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var sweepSchedule string

func startSweepWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	schedule := deps.Config.Workflow.SweepSchedule
	if sweepSchedule != "" {
		schedule = sweepSchedule
	}

	engine := deps.WorkflowHandler.Service

	scheduler := cron.New()
	_, err = scheduler.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := engine.ProcessLowValueAutoApproval(ctx)
		if err != nil {
			lg.Error("auto-approval sweep run failed", "error", err)
			return
		}
		lg.Info("auto-approval sweep run complete", "approved_count", count)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid sweep schedule %q: %v\n", schedule, err)
		os.Exit(1)
	}

	scheduler.Start()
	lg.Info("auto-approval sweep worker started", "schedule", schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("received signal, shutting down sweep worker", "signal", sig)

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		lg.Info("sweep worker shutdown complete")
	case <-time.After(30 * time.Second):
		lg.Warn("shutdown timeout reached, forcing exit")
	}

	if err := deps.DB.Close(); err != nil {
		lg.Error("database close error", "error", err)
	}
}

func init() {
	sweepWorkerCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "Cron schedule for the sweep (overrides config)")

	workerCmd.AddCommand(sweepWorkerCmd)
}
