// Package cmd defines the CLI commands for the admissions-crawler binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gradstats/admissions-crawler/internal/app"
	"github.com/gradstats/admissions-crawler/internal/crawler"
)

var cfgFile string

type appKeyType struct{}

var appKey appKeyType

// newApp is the application factory. It is a variable so tests can swap in
// a preconfigured instance.
var newApp = func() (*app.App, error) {
	return app.New(cfgFile)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admissions-crawler",
		Short: "ETL pipeline for graduate admissions results",
		Long: `admissions-crawler collects self-reported graduate admissions results,
standardizes the free-text institution and program names, and loads them
into Postgres for analysis.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close(cmd.Context())
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point. Policy denials exit with a distinct code
// so operators can tell "the site said no" apart from transport failures.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var policyErr *crawler.PolicyError
		if errors.As(err, &policyErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
