package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gradstats/admissions-crawler/internal/scrape"
)

// ReadSeed loads a JSON array of admission records from disk, typically the
// file written by the crawl command.
func ReadSeed(path string) ([]scrape.AdmissionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []scrape.AdmissionResult
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return records, nil
}
