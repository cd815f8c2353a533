package record

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/motorqc/internal/csvcodec"
)

var (
	// ErrMissingFields indicates a required form field was left empty.
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidStatus indicates a status outside Good / Not Good.
	ErrInvalidStatus = errors.New("invalid status")
)

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Validate checks that every required field is non-empty and that the
// status, when given, is known.
func (f Form) Validate() error {
	if strings.TrimSpace(f.MotorID) == "" ||
		strings.TrimSpace(f.GearID) == "" ||
		strings.TrimSpace(f.VehicleSerialNumber) == "" ||
		strings.TrimSpace(f.WinNumber) == "" {
		return ErrMissingFields
	}
	if f.Status != "" {
		if _, err := ParseStatus(f.Status); err != nil {
			return err
		}
	}
	return nil
}

// NewRecord validates the form and builds a record with a fresh id and the
// given creation time. An empty status defaults to Good.
func NewRecord(f Form, now time.Time) (Record, error) {
	if err := f.Validate(); err != nil {
		return Record{}, err
	}

	status := StatusGood
	if f.Status != "" {
		status, _ = ParseStatus(f.Status)
	}

	return Record{
		ID:                  uuid.New().String(),
		MotorID:             f.MotorID,
		GearID:              f.GearID,
		VehicleSerialNumber: f.VehicleSerialNumber,
		WinNumber:           f.WinNumber,
		Status:              status,
		Timestamp:           FormatTimestamp(now),
		AudioFiles:          f.AudioFiles,
	}, nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses the record timestamp. The zero time is returned for a
// malformed value.
func (r Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Columns is the export column order produced by Flatten.
var Columns = []string{
	"id", "motorId", "gearId", "vehicleSerialNumber", "winNumber", "status", "timestamp",
	string(RPM500), string(RPM1500), string(RPM3000), string(RPM4500),
}

// Flatten converts r into an ordered export row. Each audio bucket becomes
// its own column holding the file name, or "" when the bucket is empty.
func (r Record) Flatten() csvcodec.Row {
	row := csvcodec.Row{
		{Key: "id", Value: r.ID},
		{Key: "motorId", Value: r.MotorID},
		{Key: "gearId", Value: r.GearID},
		{Key: "vehicleSerialNumber", Value: r.VehicleSerialNumber},
		{Key: "winNumber", Value: r.WinNumber},
		{Key: "status", Value: string(r.Status)},
		{Key: "timestamp", Value: r.Timestamp},
	}
	for _, b := range Buckets {
		name := ""
		if ref := r.AudioFiles.Get(b); ref != nil {
			name = ref.Name
		}
		row = append(row, csvcodec.Field{Key: string(b), Value: name})
	}
	return row
}

// FlattenAll flattens records in order.
func FlattenAll(records []Record) []csvcodec.Row {
	rows := make([]csvcodec.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Flatten())
	}
	return rows
}
