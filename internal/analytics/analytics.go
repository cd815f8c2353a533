// Package analytics derives quality statistics from the record sequence.
package analytics

import (
	"math"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// Summary holds the dashboard statistics.
type Summary struct {
	Total           int                `json:"total"`
	Good            int                `json:"good"`
	NotGood         int                `json:"notGood"`
	QualityRate     int                `json:"qualityRate"`
	AudioRecordings int                `json:"audioRecordings"`
	ByRPM           map[record.RPM]int `json:"byRPM"`
}

// Summarize computes a Summary. QualityRate is the good percentage rounded
// half away from zero, and 0 for an empty sequence.
func Summarize(records []record.Record) Summary {
	s := Summary{
		Total: len(records),
		ByRPM: make(map[record.RPM]int, len(record.Buckets)),
	}
	for _, b := range record.Buckets {
		s.ByRPM[b] = 0
	}

	for _, r := range records {
		switch r.Status {
		case record.StatusGood:
			s.Good++
		case record.StatusNotGood:
			s.NotGood++
		}
		for _, b := range record.Buckets {
			if r.AudioFiles.Get(b) != nil {
				s.ByRPM[b]++
				s.AudioRecordings++
			}
		}
	}

	if s.Total > 0 {
		s.QualityRate = int(math.Round(float64(s.Good) / float64(s.Total) * 100))
	}
	return s
}

// RPMCounts returns the per-bucket counts in bucket order.
func (s Summary) RPMCounts() []int {
	out := make([]int, len(record.Buckets))
	for i, b := range record.Buckets {
		out[i] = s.ByRPM[b]
	}
	return out
}
