package store

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// Envelope is the persisted document: {"state":{"records":[...]},"version":0}.
type Envelope struct {
	State   State `json:"state"`
	Version int   `json:"version"`
}

// State is the persisted slice of application state.
type State struct {
	Records []record.Record `json:"records"`
}

// encodeEnvelope wraps records in the persisted envelope.
func encodeEnvelope(records []record.Record) ([]byte, error) {
	if records == nil {
		records = []record.Record{}
	}
	return json.Marshal(Envelope{State: State{Records: records}})
}

// decodeEnvelope parses a persisted envelope.
func decodeEnvelope(data []byte) ([]record.Record, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.State.Records == nil {
		return []record.Record{}, nil
	}
	return env.State.Records, nil
}
