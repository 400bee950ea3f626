// Package report summarizes aggregate load-test statistics exported as
// CSV by the run (or by compatible external harnesses). The summary row
// is located by name, never by position, and missing columns are an
// error rather than a silent zero.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// AggregatedName is the name of the summary row in a stats export
const AggregatedName = "Aggregated"

// Grade buckets for the performance assessment
const (
	GradeExcellent  = "EXCELLENT"
	GradeGood       = "GOOD"
	GradeAcceptable = "ACCEPTABLE"
	GradePoor       = "POOR"
	GradeFailed     = "FAILED"
)

// Summary holds the aggregated figures pulled from a stats export
type Summary struct {
	TotalRequests  int
	FailedRequests int
	RequestsPerSec float64
	AvgResponseMs  float64
	P90ResponseMs  float64
	P95ResponseMs  float64
	HasPercentiles bool // older exports omit the percentile columns
}

// SuccessRate returns the percentage of requests without failures
func (s *Summary) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalRequests-s.FailedRequests) / float64(s.TotalRequests) * 100
}

// Grade buckets the run by success rate and average latency
func (s *Summary) Grade() string {
	if s.TotalRequests == 0 {
		return GradeFailed
	}

	rate := s.SuccessRate()
	switch {
	case rate >= 99.5 && s.AvgResponseMs < 200:
		return GradeExcellent
	case rate >= 99.0 && s.AvgResponseMs < 500:
		return GradeGood
	case rate >= 95.0:
		return GradeAcceptable
	default:
		return GradePoor
	}
}

// Recommendations returns follow-up suggestions derived from the figures
func (s *Summary) Recommendations() []string {
	var recs []string

	if s.FailedRequests > 0 {
		recs = append(recs, "Investigate failed requests to improve reliability")
	}
	if s.AvgResponseMs > 1000 {
		recs = append(recs, "Response times are high - consider optimization")
	}
	if s.RequestsPerSec < 1.0 {
		recs = append(recs, "Throughput is low - check system capacity")
	}
	if s.TotalRequests == 0 {
		recs = append(recs, "Run produced no requests - check configuration and environment")
	}

	return recs
}

// Headline returns the one-line summary of the run
func (s *Summary) Headline() string {
	return fmt.Sprintf("Processed %d requests with %.1f%% success rate. Average response time: %.2fms, Throughput: %.2f req/s.",
		s.TotalRequests, s.SuccessRate(), s.AvgResponseMs, s.RequestsPerSec)
}

// Columns the summary cannot be built without. Percentile columns are
// optional because older exports predate them.
var requiredColumns = []string{
	"Name",
	"Request Count",
	"Failure Count",
	"Requests/s",
	"Average Response Time",
}

// LoadFile reads a stats CSV from disk and extracts the aggregated summary
func LoadFile(path string, log zerolog.Logger) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse stats file: %w", err)
	}

	return Parse(records, log)
}

// Parse extracts the aggregated summary row from parsed CSV records.
// The row is located by its Name cell, not by line position.
func Parse(records [][]string, log zerolog.Logger) (*Summary, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("stats export has no data rows")
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("stats export is missing required column %q", name)
		}
	}

	var row []string
	for _, rec := range records[1:] {
		if len(rec) == len(header) && rec[index["Name"]] == AggregatedName {
			row = rec
			break
		}
	}
	if row == nil {
		return nil, fmt.Errorf("stats export has no %q row", AggregatedName)
	}

	summary := &Summary{}
	var err error

	if summary.TotalRequests, err = atoiCell(row, index, "Request Count"); err != nil {
		return nil, err
	}
	if summary.FailedRequests, err = atoiCell(row, index, "Failure Count"); err != nil {
		return nil, err
	}
	if summary.RequestsPerSec, err = floatCell(row, index, "Requests/s"); err != nil {
		return nil, err
	}
	if summary.AvgResponseMs, err = floatCell(row, index, "Average Response Time"); err != nil {
		return nil, err
	}

	_, hasP90 := index["90%"]
	_, hasP95 := index["95%"]
	if hasP90 && hasP95 {
		summary.HasPercentiles = true
		if summary.P90ResponseMs, err = floatCell(row, index, "90%"); err != nil {
			return nil, err
		}
		if summary.P95ResponseMs, err = floatCell(row, index, "95%"); err != nil {
			return nil, err
		}
	} else {
		log.Warn().Msg("stats export has no percentile columns, skipping p90/p95")
	}

	log.Debug().Int("requests", summary.TotalRequests).Int("failures", summary.FailedRequests).
		Msg("parsed aggregated stats row")

	return summary, nil
}

func atoiCell(row []string, index map[string]int, column string) (int, error) {
	v, err := strconv.Atoi(row[index[column]])
	if err != nil {
		return 0, fmt.Errorf("column %q has non-integer value %q: %w", column, row[index[column]], err)
	}
	return v, nil
}

func floatCell(row []string, index map[string]int, column string) (float64, error) {
	v, err := strconv.ParseFloat(row[index[column]], 64)
	if err != nil {
		return 0, fmt.Errorf("column %q has non-numeric value %q: %w", column, row[index[column]], err)
	}
	return v, nil
}
