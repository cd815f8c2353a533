package store

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// MemoryPersister is an in-memory Persister for tests and ephemeral runs.
type MemoryPersister struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load decodes the last saved envelope.
func (m *MemoryPersister) Load(ctx context.Context) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return decodeEnvelope(m.data)
}

// Save encodes records, or returns the injected failure.
func (m *MemoryPersister) Save(ctx context.Context, records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := encodeEnvelope(records)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// FailSaves makes subsequent saves return err. Pass nil to recover.
func (m *MemoryPersister) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// SetRaw replaces the stored bytes, e.g. with a corrupt payload.
func (m *MemoryPersister) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// Raw returns the stored bytes.
func (m *MemoryPersister) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Saves returns the number of successful saves.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
