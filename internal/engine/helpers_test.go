package engine

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

var t0 = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func logRecord(service string, at time.Time, level models.LogLevel, body string, fields map[string]string) models.EvidenceRecord {
	return models.EvidenceRecord{
		Source:    "test",
		Backend:   models.BackendRecent,
		Service:   service,
		Timestamp: at,
		Severity:  level,
		Body:      body,
		Fields:    fields,
	}
}

// timeoutRecords produces n distinct upstream-timeout lines for one tracking id.
func timeoutRecords(service, tracking string, start time.Time, n int) []models.EvidenceRecord {
	out := make([]models.EvidenceRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, logRecord(service, start.Add(time.Duration(i)*time.Minute), models.LevelError,
			fmt.Sprintf("CarrierClient.Post upstream timeout after %d ms for tracking %s", 3000+i, tracking),
			map[string]string{"tracking_id": tracking, "correlation_id": fmt.Sprintf("corr-%04d", i%3)}))
	}
	return out
}
