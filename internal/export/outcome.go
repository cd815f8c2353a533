// Package export turns the record sequence into exportable artifacts and
// ships them: CSV and Excel files on disk, or CSV text POSTed to an upload
// relay. Every target reports through the same Outcome type so callers
// never have to handle a raw error.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNothingToExport indicates an empty record sequence.
	ErrNothingToExport = errors.New("no records to export")

	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("transport failure")

	// ErrUnknownTarget indicates no target is registered under a name.
	ErrUnknownTarget = errors.New("unknown export target")
)

// APIError is a non-2xx response from the upload endpoint.
type APIError struct {
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d", e.Status)
}

// Outcome is the normalised result of one export action.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Detail is an optional second line for display.
	Detail string `json:"detail,omitempty"`
	// Result is the target-specific payload: the relay's JSON response for
	// uploads, file metadata for downloads.
	Result json.RawMessage `json:"result,omitempty"`
	// Err keeps the classified failure for errors.Is / errors.As.
	Err error `json:"-"`
}

// Failed builds a failure outcome with the "Export failed: <reason>" message.
func Failed(err error) Outcome {
	return Outcome{
		Success: false,
		Message: "Export failed: " + reason(err),
		Err:     err,
	}
}

// reason renders err for operators.
func reason(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNothingToExport):
		return "No records to export"
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return err.Error()
	}
}

// transportError carries a network failure. Its text is the underlying
// error's text; it matches ErrTransport.
type transportError struct {
	err error
}

func (e *transportError) Error() string        { return e.err.Error() }
func (e *transportError) Unwrap() error        { return e.err }
func (e *transportError) Is(target error) bool { return target == ErrTransport }
