package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the pass/fail outcome of a quality check.
type Status string

const (
	// StatusGood marks an assembly that passed inspection.
	StatusGood Status = "Good"
	// StatusNotGood marks an assembly that failed inspection.
	StatusNotGood Status = "Not Good"
)

// ParseStatus parses a status string. "NotGood" is accepted as an alias
// of "Not Good".
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case string(StatusGood):
		return StatusGood, nil
	case string(StatusNotGood), "NotGood":
		return StatusNotGood, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Valid reports whether s is one of the two known statuses.
func (s Status) Valid() bool {
	return s == StatusGood || s == StatusNotGood
}

// UnmarshalJSON rejects anything but the two known statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RPM names one of the four audio buckets.
type RPM string

const (
	RPM500  RPM = "rpm500"
	RPM1500 RPM = "rpm1500"
	RPM3000 RPM = "rpm3000"
	RPM4500 RPM = "rpm4500"
)

// Buckets lists the RPM buckets in display and export order.
var Buckets = []RPM{RPM500, RPM1500, RPM3000, RPM4500}

// ParseRPM parses a bucket name such as "rpm1500".
func ParseRPM(s string) (RPM, bool) {
	for _, b := range Buckets {
		if string(b) == s {
			return b, true
		}
	}
	return "", false
}

// FileRef references an uploaded audio file.
type FileRef struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType,omitempty"`
	// Key locates the stored blob. Empty when only metadata was submitted.
	Key string `json:"key,omitempty"`
}

// AudioFiles holds one optional file per RPM bucket. The JSON form always
// carries all four keys, with null for an empty bucket.
type AudioFiles struct {
	RPM500  *FileRef `json:"rpm500"`
	RPM1500 *FileRef `json:"rpm1500"`
	RPM3000 *FileRef `json:"rpm3000"`
	RPM4500 *FileRef `json:"rpm4500"`
}

// Get returns the file in bucket b, or nil.
func (a AudioFiles) Get(b RPM) *FileRef {
	switch b {
	case RPM500:
		return a.RPM500
	case RPM1500:
		return a.RPM1500
	case RPM3000:
		return a.RPM3000
	case RPM4500:
		return a.RPM4500
	}
	return nil
}

// Set stores ref in bucket b. Unknown buckets are ignored.
func (a *AudioFiles) Set(b RPM, ref *FileRef) {
	switch b {
	case RPM500:
		a.RPM500 = ref
	case RPM1500:
		a.RPM1500 = ref
	case RPM3000:
		a.RPM3000 = ref
	case RPM4500:
		a.RPM4500 = ref
	}
}

// Count returns the number of non-empty buckets.
func (a AudioFiles) Count() int {
	n := 0
	for _, b := range Buckets {
		if a.Get(b) != nil {
			n++
		}
	}
	return n
}

// Record is one quality-control entry.
type Record struct {
	ID                  string     `json:"id"`
	MotorID             string     `json:"motorId"`
	GearID              string     `json:"gearId"`
	VehicleSerialNumber string     `json:"vehicleSerialNumber"`
	WinNumber           string     `json:"winNumber"`
	Timestamp           string     `json:"timestamp"`
	Status              Status     `json:"status"`
	AudioFiles          AudioFiles `json:"audioFiles"`
}

// Form is the operator input a Record is built from.
type Form struct {
	MotorID             string     `json:"motorId" form:"motorId"`
	GearID              string     `json:"gearId" form:"gearId"`
	VehicleSerialNumber string     `json:"vehicleSerialNumber" form:"vehicleSerialNumber"`
	WinNumber           string     `json:"winNumber" form:"winNumber"`
	Status              string     `json:"status" form:"status"`
	AudioFiles          AudioFiles `json:"audioFiles"`
}
