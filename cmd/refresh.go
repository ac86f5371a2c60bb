package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run the full pipeline once: crawl, parse, standardize, load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, err := a.Pool(ctx)
			if err != nil {
				return err
			}
			runner, err := a.Runner(pool)
			if err != nil {
				return err
			}

			summary, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			a.Logger.Info("refresh summary",
				zap.String("job_id", summary.JobID.String()),
				zap.Int("pages_fetched", summary.PagesFetched),
				zap.Bool("end_of_data", summary.EndOfData),
				zap.Int("parsed", summary.Parsed),
				zap.Int("dropped", summary.Dropped),
				zap.Int("inserted", summary.Inserted),
				zap.Int("updated", summary.Updated),
			)
			return nil
		},
	}
}
