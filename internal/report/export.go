package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/studiowebux/loadcli/internal/results"
)

// exportHeader matches the column layout Parse expects, including the
// percentile columns of newer exports
var exportHeader = []string{
	"Name",
	"Request Count",
	"Failure Count",
	"Requests/s",
	"Average Response Time",
	"90%",
	"95%",
}

// WriteSummary exports a finished run's aggregate figures as a stats CSV
func WriteSummary(path string, run *results.Run) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	requestsPerSec := 0.0
	if run.CompletedAt != nil {
		elapsed := run.CompletedAt.Sub(run.StartedAt).Seconds()
		if elapsed > 0 {
			requestsPerSec = float64(run.TotalRequests) / elapsed
		}
	}

	failures := run.TotalErrors + run.TotalAssertionFailures

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("failed to write stats header: %w", err)
	}
	if err := w.Write([]string{
		AggregatedName,
		strconv.Itoa(run.TotalRequests),
		strconv.Itoa(failures),
		strconv.FormatFloat(requestsPerSec, 'f', 2, 64),
		strconv.FormatFloat(run.AvgDurationMs, 'f', 2, 64),
		strconv.FormatInt(run.P90DurationMs, 10),
		strconv.FormatInt(run.P95DurationMs, 10),
	}); err != nil {
		return fmt.Errorf("failed to write stats row: %w", err)
	}

	w.Flush()
	return w.Error()
}
