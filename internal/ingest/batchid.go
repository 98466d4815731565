package ingest

import (
	"fmt"
	"strings"
	"time"
)

const batchDateLayout = "20060102"

// DatePrefix is the calendar part of a batch id, e.g. "20240115".
func DatePrefix(t time.Time) string {
	return t.Format(batchDateLayout)
}

// FormatBatchID renders the n-th batch of a day as "YYYYMMDD_nnn".
func FormatBatchID(prefix string, n int) string {
	return fmt.Sprintf("%s_%03d", prefix, n)
}

// NextBatchID counts the ids that share the date prefix of at and returns
// the next one in the sequence. The counter restarts at 001 every day.
func NextBatchID(at time.Time, existing []string) string {
	prefix := DatePrefix(at)

	count := 0
	for _, id := range existing {
		if strings.HasPrefix(id, prefix) {
			count++
		}
	}

	return FormatBatchID(prefix, count+1)
}
