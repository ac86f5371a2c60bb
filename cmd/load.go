package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/loader"
)

func newLoadCmd() *cobra.Command {
	var jsonFile string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Standardize a JSON seed file and upsert it into Postgres",
		Long: `Reads the JSON records written by the crawl command, runs name
standardization, and upserts the rows. Loading the same file twice leaves
the table unchanged apart from updated_at.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			records, err := loader.ReadSeed(jsonFile)
			if err != nil {
				return err
			}

			pool, err := a.Pool(ctx)
			if err != nil {
				return err
			}

			a.Standardizer().Apply(ctx, records, a.Cfg.Standardizer.Workers)

			report, err := a.Loader(pool).Load(ctx, uuid.New(), records)
			if err != nil {
				return err
			}
			a.Logger.Info("seed load finished",
				zap.String("file", jsonFile),
				zap.Int("inserted", report.Inserted),
				zap.Int("updated", report.Updated),
				zap.Int("skipped", report.Skipped),
				zap.Int("errors", report.Errors),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&jsonFile, "json-file", "applicant_data.json", "JSON seed file to load")

	return cmd
}
