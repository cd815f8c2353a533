// Package store keeps the ordered sequence of quality-control records for the
// running session and mirrors it to durable storage after every mutation.
//
// The in-memory sequence is authoritative. Persistence is best effort: a
// failed Save is reported to the caller as ErrPersist, but the mutation has
// already been applied and stays applied.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

const instrumentationName = "github.com/fyrsmithlabs/motorqc/internal/store"

// StorageKey is the durable key the record sequence is stored under.
const StorageKey = "motor-data-storage"

var (
	// ErrPersist indicates the durable write failed. In-memory state is
	// still correct.
	ErrPersist = errors.New("persisting records failed")

	// ErrNotFound is returned by a Persister that holds no state yet.
	ErrNotFound = errors.New("no persisted state")

	// ErrCorrupt is returned by a Persister whose state cannot be parsed.
	ErrCorrupt = errors.New("persisted state is unreadable")
)

// Persister is the durable storage port.
type Persister interface {
	// Load returns the persisted sequence, ErrNotFound when nothing is
	// stored, or an error wrapping ErrCorrupt when the state is unparsable.
	Load(ctx context.Context) ([]record.Record, error)

	// Save replaces the persisted sequence.
	Save(ctx context.Context, records []record.Record) error
}

// Store is the process-wide record store.
type Store struct {
	mu        sync.RWMutex
	records   []record.Record
	dirty     bool // memory holds mutations the persister has not accepted
	persister Persister
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates a store and rehydrates it from p. Missing or unreadable
// state yields an empty store.
func New(ctx context.Context, p Persister, logger *zap.Logger) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("persister cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		persister: p,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
	}
	s.records = s.load(ctx)
	recordsGauge.Set(float64(len(s.records)))

	return s, nil
}

// load reads the persister, falling back to an empty sequence.
func (s *Store) load(ctx context.Context) []record.Record {
	records, err := s.persister.Load(ctx)
	switch {
	case err == nil:
		s.logger.Info("records rehydrated", zap.Int("count", len(records)))
		return records
	case errors.Is(err, ErrNotFound):
		s.logger.Debug("no persisted records, starting empty")
	default:
		s.logger.Warn("discarding persisted records", zap.Error(err))
	}
	return []record.Record{}
}

// Add appends rec to the end of the sequence and persists it. No
// validation or deduplication happens here.
func (s *Store) Add(ctx context.Context, rec record.Record) error {
	ctx, span := s.tracer.Start(ctx, "store.add")
	defer span.End()
	span.SetAttributes(attribute.String("record_id", rec.ID))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	recordsGauge.Set(float64(len(s.records)))
	mutationsTotal.WithLabelValues("add").Inc()

	return s.persistLocked(ctx, span)
}

// Records returns a copy of the full ordered sequence.
func (s *Store) Records() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear empties the sequence and persists the empty state.
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "store.clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	span.SetAttributes(attribute.Int("cleared", len(s.records)))
	s.records = []record.Record{}
	recordsGauge.Set(0)
	mutationsTotal.WithLabelValues("clear").Inc()

	return s.persistLocked(ctx, span)
}

// Reload replaces the in-memory sequence with whatever the persister holds.
// The read happens under the write lock so a concurrent Add cannot be
// overwritten by an older snapshot.
//
// Memory is kept when it holds unsaved mutations, or when the persisted
// state cannot be read. Missing state means the snapshot was removed and
// empties the store.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dirty {
		s.logger.Warn("skipping reload, unsaved records in memory",
			zap.Int("count", len(s.records)))
		return
	}

	records, err := s.persister.Load(ctx)
	switch {
	case err == nil:
		s.logger.Info("records reloaded", zap.Int("count", len(records)))
		s.records = records
	case errors.Is(err, ErrNotFound):
		s.logger.Info("persisted records removed, clearing")
		s.records = []record.Record{}
	default:
		s.logger.Warn("keeping in-memory records, reload failed", zap.Error(err))
		return
	}
	recordsGauge.Set(float64(len(s.records)))
}

// persistLocked saves the current sequence. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context, span trace.Span) error {
	snapshot := make([]record.Record, len(s.records))
	copy(snapshot, s.records)

	if err := s.persister.Save(ctx, snapshot); err != nil {
		persistErrorsTotal.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("failed to persist records",
			zap.Int("count", len(snapshot)),
			zap.Error(err))
		s.dirty = true
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.dirty = false
	return nil
}
