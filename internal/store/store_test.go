package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

func testRecord(t *testing.T, motorID string) record.Record {
	t.Helper()
	rec, err := record.NewRecord(record.Form{
		MotorID:             motorID,
		GearID:              "G",
		VehicleSerialNumber: "V",
		WinNumber:           "W",
		Status:              "Good",
	}, time.Now())
	require.NoError(t, err)
	return rec
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("nil persister", func(t *testing.T) {
		_, err := New(ctx, nil, nil)
		assert.Error(t, err)
	})

	t.Run("starts empty without state", func(t *testing.T) {
		s, err := New(ctx, NewMemoryPersister(), zap.NewNop())
		require.NoError(t, err)
		assert.Empty(t, s.Records())
		assert.NotNil(t, s.Records())
	})

	t.Run("rehydrates persisted records", func(t *testing.T) {
		p := NewMemoryPersister()
		first, err := New(ctx, p, nil)
		require.NoError(t, err)
		require.NoError(t, first.Add(ctx, testRecord(t, "M1")))
		require.NoError(t, first.Add(ctx, testRecord(t, "M2")))

		second, err := New(ctx, p, nil)
		require.NoError(t, err)
		got := second.Records()
		require.Len(t, got, 2)
		assert.Equal(t, "M1", got[0].MotorID)
		assert.Equal(t, "M2", got[1].MotorID)
	})

	t.Run("corrupt state falls back to empty", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		p := NewMemoryPersister()
		p.SetRaw([]byte("{not json"))

		s, err := New(ctx, p, zap.New(core))
		require.NoError(t, err)
		assert.Empty(t, s.Records())
		assert.Equal(t, 1, logs.FilterMessage("discarding persisted records").Len())
	})
}

func TestStore_AddGetClear(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s, err := New(ctx, p, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		before := len(s.Records())
		rec := testRecord(t, fmt.Sprintf("M%d", i))
		require.NoError(t, s.Add(ctx, rec))

		got := s.Records()
		assert.Len(t, got, before+1)
		assert.Equal(t, rec, got[len(got)-1])
	}
	assert.Equal(t, 3, p.Saves())

	t.Run("duplicates are kept", func(t *testing.T) {
		dup := s.Records()[0]
		require.NoError(t, s.Add(ctx, dup))
		assert.Equal(t, 4, s.Len())
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		got := s.Records()
		got[0].MotorID = "mutated"
		assert.NotEqual(t, "mutated", s.Records()[0].MotorID)
	})

	t.Run("clear empties and persists", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		assert.Empty(t, s.Records())

		loaded, err := p.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s, err := New(ctx, p, nil)
	require.NoError(t, err)

	p.FailSaves(errors.New("quota exceeded"))

	rec := testRecord(t, "M1")
	err = s.Add(ctx, rec)
	require.ErrorIs(t, err, ErrPersist)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, []record.Record{rec}, s.Records())

	err = s.Clear(ctx)
	require.ErrorIs(t, err, ErrPersist)
	assert.Empty(t, s.Records())
}

func TestStore_Reload(t *testing.T) {
	ctx := context.Background()

	t.Run("unsaved records survive reload", func(t *testing.T) {
		p := NewMemoryPersister()
		s, err := New(ctx, p, nil)
		require.NoError(t, err)

		require.NoError(t, s.Add(ctx, testRecord(t, "A")))
		p.FailSaves(errors.New("disk full"))
		require.ErrorIs(t, s.Add(ctx, testRecord(t, "B")), ErrPersist)

		s.Reload(ctx)
		assert.Equal(t, 2, s.Len())

		// A successful save makes the persister authoritative again.
		p.FailSaves(nil)
		require.NoError(t, s.Add(ctx, testRecord(t, "C")))
		other := testRecord(t, "EXT")
		require.NoError(t, p.Save(ctx, []record.Record{other}))
		s.Reload(ctx)
		assert.Equal(t, []record.Record{other}, s.Records())
	})

	t.Run("corrupt snapshot keeps memory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "records.json")
		s, err := New(ctx, NewFilePersister(path), nil)
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, testRecord(t, "A")))

		require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o600))
		s.Reload(ctx)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("removed snapshot empties store", func(t *testing.T) {
		p := NewMemoryPersister()
		s, err := New(ctx, p, nil)
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, testRecord(t, "A")))

		p.SetRaw(nil)
		s.Reload(ctx)
		assert.Zero(t, s.Len())
	})
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, NewMemoryPersister(), nil)
	require.NoError(t, err)

	records := make([]record.Record, 20)
	for i := range records {
		records[i] = testRecord(t, fmt.Sprintf("M%d", i))
	}

	var wg sync.WaitGroup
	for _, rec := range records {
		wg.Add(1)
		go func(rec record.Record) {
			defer wg.Done()
			_ = s.Add(ctx, rec)
		}(rec)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "records.json")
	p := NewFilePersister(path)

	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rec := testRecord(t, "M1")
	require.NoError(t, p.Save(ctx, []record.Record{rec}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":{"records":[`)
	assert.Contains(t, string(data), `"version":0`)

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{rec}, loaded)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSQLitePersister(t *testing.T) {
	ctx := context.Background()
	p, err := NewSQLitePersister(ctx, filepath.Join(t.TempDir(), "motorqc.db"))
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := New(ctx, p, nil)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, testRecord(t, "M1")))
	require.NoError(t, s.Add(ctx, testRecord(t, "M2")))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "M2", loaded[1].MotorID)

	require.NoError(t, p.Wipe(ctx))
	s.Reload(ctx)
	assert.Empty(t, s.Records())
}
