package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobsight/jobsight/internal/delivery"
	"github.com/jobsight/jobsight/internal/pipeline"
	"github.com/jobsight/jobsight/internal/profile"
)

func newRecommendCmd() *cobra.Command {
	var (
		profilesPath string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Score the vacancy set against user profiles and deliver results",
		Long: `Loads user profiles, scores every active vacancy against each profile,
and hands ranked recommendation payloads to the delivery channel.`,
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
			if err := appInstance.RunRecommend(cmd.Context(), source, deliverer); err != nil {
				return fmt.Errorf("recommend: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profilesPath, "profiles", "profiles.json", "path to the user profiles JSON file")
	cmd.Flags().StringVar(&outDir, "out", "", "spool directory for delivery payloads (log-only when empty)")
	return cmd
}
