package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		season      string
		year        int
		institution string
		program     string
		degree      string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the canned analytical report for a term",
		Long: `Prints the standard term report as JSON. When --institution,
--program, and --degree are all given, the per-program counts are included.`,
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
			engine := a.Query(pool)

			report, err := engine.TermSummary(ctx, season, year)
			if err != nil {
				return err
			}

			out := map[string]any{"term_report": report}
			if institution != "" && program != "" && degree != "" {
				total, err := engine.ProgramCount(ctx, institution, program, degree)
				if err != nil {
					return err
				}
				accepted, err := engine.ProgramAcceptanceCount(ctx, institution, program, degree, year)
				if err != nil {
					return err
				}
				out["program_report"] = map[string]any{
					"institution": institution,
					"program":     program,
					"degree":      degree,
					"total":       total,
					"accepted":    accepted,
				}
			}

			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&season, "season", "fall", "application season")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "application year")
	cmd.Flags().StringVar(&institution, "institution", "", "standardized institution name")
	cmd.Flags().StringVar(&program, "program", "", "standardized program name")
	cmd.Flags().StringVar(&degree, "degree", "", "degree as stored, e.g. masters or phd")

	return cmd
}
