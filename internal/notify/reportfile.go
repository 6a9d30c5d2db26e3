package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report file prefixes for the two daily artifacts.
const (
	ReportPrefixBatch        = "report"
	ReportPrefixMarketReview = "market_review"
)

// WriteReportFile writes body to dir/<prefix>_YYYYMMDD.md, creating dir
// if needed. Rerunning on the same day overwrites that day's file. It
// returns the written path.
func WriteReportFile(dir, prefix, body string, asOf time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.md", prefix, asOf.Format("20060102")))
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}
