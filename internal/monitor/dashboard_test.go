package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/motorqc/internal/analytics"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

type fakeSource struct {
	records []record.Record
	err     error
}

func (f *fakeSource) Records(context.Context) ([]record.Record, error) {
	return f.records, f.err
}

func (f *fakeSource) Analytics(context.Context) (analytics.Summary, error) {
	if f.err != nil {
		return analytics.Summary{}, f.err
	}
	return analytics.Summarize(f.records), nil
}

func sampleRecords(t *testing.T) []record.Record {
	t.Helper()
	var out []record.Record
	for i, status := range []string{"Good", "Good", "Not Good", "Good"} {
		form := record.Form{
			MotorID:             fmt.Sprintf("M%d", i+1),
			GearID:              "G",
			VehicleSerialNumber: "V",
			WinNumber:           "W",
			Status:              status,
		}
		if i == 0 {
			form.AudioFiles.Set(record.RPM1500, &record.FileRef{Name: "a.wav", Size: 1})
		}
		rec, err := record.NewRecord(form, time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC))
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func newTestModel(src Source) Model {
	return NewModel(src, "http://localhost:9090", 5*time.Second)
}

func TestNewModel(t *testing.T) {
	model := newTestModel(&fakeSource{})
	assert.Equal(t, "http://localhost:9090", model.serverURL)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
}

func TestModel_Init(t *testing.T) {
	model := newTestModel(&fakeSource{})
	assert.NotNil(t, model.Init())
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := newTestModel(&fakeSource{})

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	m := updated.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_Update_RefreshKey(t *testing.T) {
	src := &fakeSource{records: sampleRecords(t)}
	model := newTestModel(src)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m := updated.(Model)
	assert.False(t, m.quitting)
	require.NotNil(t, cmd)

	msg := cmd()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "expected snapshot, got %T", msg)
	assert.Equal(t, 4, snap.Summary.Total)
	assert.Len(t, snap.Records, 4)
}

func TestModel_Update_TickMsg(t *testing.T) {
	model := newTestModel(&fakeSource{})

	updated, cmd := model.Update(tickMsg(time.Now()))

	m := updated.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_SnapshotMsg(t *testing.T) {
	recs := sampleRecords(t)
	model := newTestModel(&fakeSource{})
	model.err = fmt.Errorf("stale")

	updated, cmd := model.Update(snapshotMsg{Summary: analytics.Summarize(recs), Records: recs})

	m := updated.(Model)
	assert.Nil(t, cmd)
	assert.NoError(t, m.err)
	assert.False(t, m.lastUpdate.IsZero())
	assert.Equal(t, 75, m.snapshot.Summary.QualityRate)
	assert.Equal(t, []float64{75}, m.qualityHistory)

	rows := m.records.Rows()
	require.Len(t, rows, 4)
	// Newest first.
	assert.Equal(t, "M4", rows[0][1])
	assert.Equal(t, "M1", rows[3][1])
	assert.Equal(t, "1/4", rows[3][6])
	assert.Equal(t, "✗ Not Good", rows[1][5])
}

func TestModel_Update_EmptySnapshotKeepsHistory(t *testing.T) {
	model := newTestModel(&fakeSource{})

	updated, _ := model.Update(snapshotMsg{})

	assert.Empty(t, updated.(Model).qualityHistory)
}

func TestModel_Update_ErrMsg(t *testing.T) {
	model := newTestModel(&fakeSource{})

	updated, cmd := model.Update(errMsg(fmt.Errorf("connection refused")))

	m := updated.(Model)
	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "connection refused")
	assert.Nil(t, cmd)
}

func TestFetchSnapshot_Error(t *testing.T) {
	msg := fetchSnapshot(&fakeSource{err: fmt.Errorf("dial tcp: refused")})()
	err, ok := msg.(errMsg)
	require.True(t, ok)
	assert.Contains(t, error(err).Error(), "refused")
}

func TestModel_View_WithData(t *testing.T) {
	recs := sampleRecords(t)
	model := newTestModel(&fakeSource{})
	updated, _ := model.Update(snapshotMsg{Summary: analytics.Summarize(recs), Records: recs})
	m := updated.(Model)
	m.lastUpdate = time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)

	view := m.View()

	assert.Contains(t, view, "motorqc Monitor")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "Quality Rate")
	assert.Contains(t, view, "75%")
	assert.Contains(t, view, "DRIFTING")
	assert.Contains(t, view, "Audio by RPM")
	assert.Contains(t, view, "Recent Records")
	assert.Contains(t, view, "M4")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithError(t *testing.T) {
	model := newTestModel(&fakeSource{})
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	assert.Contains(t, view, "Cannot reach motorqcd")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://localhost:9090")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_NoData(t *testing.T) {
	view := newTestModel(&fakeSource{}).View()

	assert.Contains(t, view, "motorqc Monitor")
	assert.Contains(t, view, "NO DATA")
	assert.Contains(t, view, "No records yet")
	assert.Contains(t, view, "[q]")
}

func TestQualityBadge(t *testing.T) {
	assert.Contains(t, qualityBadge(0, 0), "NO DATA")
	assert.Contains(t, qualityBadge(95, 20), "ON TARGET")
	assert.Contains(t, qualityBadge(90, 10), "ON TARGET")
	assert.Contains(t, qualityBadge(75, 4), "DRIFTING")
	assert.Contains(t, qualityBadge(10, 10), "OFF TARGET")
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}
