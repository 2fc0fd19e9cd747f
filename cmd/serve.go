package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/api"
	"github.com/jobsight/jobsight/internal/delivery"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/profile"
	"github.com/jobsight/jobsight/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var (
		profilesPath string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled pipeline cycles with the operational endpoint",
		Long: `Runs full crawl-and-recommend cycles on the configured cron schedule
(default: Mondays at midnight) and serves /healthz and /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			var deliverer pipeline.Deliverer
			if outDir != "" {
				deliverer, err = delivery.NewJSONDir(outDir)
				if err != nil {
					return fmt.Errorf("init delivery spool: %w", err)
				}
			} else {
				deliverer = delivery.NewLog(appInstance.Logger)
			}
			source := profile.NewFileSource(profilesPath)

			cycle := func(ctx context.Context) error {
				return appInstance.RunCycle(ctx, source, deliverer)
			}
			sched, err := scheduler.New(appInstance.Config.Schedule.Cron, cycle, appInstance.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := api.New(appInstance.Config.Server.Port, appInstance.Logger)
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(ctx)
			}()

			sched.Run(ctx)

			if err := <-errCh; err != nil {
				return fmt.Errorf("operational server: %w", err)
			}
			appInstance.Logger.Info("serve stopped", zap.String("reason", "signal"))
			return nil
		},
	}

	cmd.Flags().StringVar(&profilesPath, "profiles", "profiles.json", "path to the user profiles JSON file")
	cmd.Flags().StringVar(&outDir, "out", "", "spool directory for delivery payloads (log-only when empty)")
	return cmd
}
