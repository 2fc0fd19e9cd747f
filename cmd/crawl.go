package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/pipeline"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl cycle over the configured sources",
		Long: `Discovers vacancy pages from the configured listing sources, fetches and
parses them, and reconciles the results into the vacancy store. An
aborted run leaves a checkpoint and is resumed by the next invocation.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	run, err := appInstance.RunCrawl(cmd.Context())
	if err != nil {
		var abortErr *pipeline.RunAbortError
		if errors.As(err, &abortErr) {
			appInstance.Logger.Warn("run aborted, checkpoint preserved",
				zap.String("run_id", abortErr.RunID),
			)
		}
		return fmt.Errorf("crawl: %w", err)
	}

	appInstance.Logger.Info("crawl finished",
		zap.String("run_id", run.ID),
		zap.String("state", string(run.State)),
		zap.Int("targets", len(run.Targets)),
	)
	return nil
}
