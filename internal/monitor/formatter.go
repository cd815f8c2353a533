package monitor

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// FormatQualityRate formats a whole-number percentage as "X%".
func FormatQualityRate(rate int) string {
	return fmt.Sprintf("%d%%", rate)
}

// FormatCount formats a count with thousands separators.
func FormatCount(n int) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

// FormatAudio formats the number of filled RPM buckets as "n/4".
func FormatAudio(files record.AudioFiles) string {
	return fmt.Sprintf("%d/%d", files.Count(), len(record.Buckets))
}

// FormatClock renders a record timestamp as local HH:MM:SS. Unparseable
// timestamps are returned as-is.
func FormatClock(ts string) string {
	t, err := time.Parse(record.TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}
