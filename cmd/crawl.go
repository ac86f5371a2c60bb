package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/crawler"
	"github.com/gradstats/admissions-crawler/internal/scrape"
)

func newCrawlCmd() *cobra.Command {
	var (
		outPath   string
		startPage int
		pageLimit int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the results listing and write parsed records to JSON",
		Long: `Fetches listing pages one at a time, honoring the site's robots.txt,
parses each page into admission records, and writes the accumulated
records as a JSON array. Standardization happens later, at load time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			engine, err := a.Crawler()
			if err != nil {
				return err
			}
			parser := a.Parser()

			var records []scrape.AdmissionResult
			var dropped int
			visit := func(page crawler.RawPage) error {
				parsed, warnings, perr := parser.ParsePage(page.Body, page.Number)
				if perr != nil {
					return fmt.Errorf("parse page %d: %w", page.Number, perr)
				}
				for _, w := range warnings {
					a.Logger.Warn("row skipped", zap.String("reason", w.String()))
				}
				dropped += len(warnings)
				records = append(records, parsed...)
				return nil
			}

			stats, err := engine.Crawl(cmd.Context(), startPage, pageLimit, visit)
			if err != nil && len(records) == 0 {
				return err
			}
			if err != nil {
				a.Logger.Warn("crawl ended early, writing pages collected so far", zap.Error(err))
			}

			if werr := writeRecords(outPath, records); werr != nil {
				return werr
			}
			a.Logger.Info("crawl finished",
				zap.Int("pages_fetched", stats.PagesFetched),
				zap.Bool("end_of_data", stats.EndOfData),
				zap.Int("records", len(records)),
				zap.Int("dropped", dropped),
				zap.String("out", outPath),
			)
			return err
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "applicant_data.json", "output JSON file")
	cmd.Flags().IntVar(&startPage, "page", 1, "listing page to start from")
	cmd.Flags().IntVar(&pageLimit, "limit", 0, "maximum pages to fetch (0 = until end of data)")

	return cmd
}

func writeRecords(path string, records []scrape.AdmissionResult) error {
	if records == nil {
		records = []scrape.AdmissionResult{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
