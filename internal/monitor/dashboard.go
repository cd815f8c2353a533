// Package monitor renders the live quality-control dashboard.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/motorqc/internal/analytics"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	chartWidth  = 40
	chartHeight = 8

	tableRows    = 8
	fetchTimeout = 5 * time.Second
)

// Source is where the dashboard reads its data from.
type Source interface {
	Records(ctx context.Context) ([]record.Record, error)
	Analytics(ctx context.Context) (analytics.Summary, error)
}

// Snapshot is one poll of the server.
type Snapshot struct {
	Summary analytics.Summary
	Records []record.Record
}

// Model is the Bubble Tea dashboard model.
type Model struct {
	source     Source
	serverURL  string
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	// Quality rate at each poll, oldest first.
	qualityHistory []float64

	qualityProgress progress.Model
	records         table.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	tileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 2).
			MarginRight(1)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))
)

var tableColumns = []table.Column{
	{Title: "Time", Width: 8},
	{Title: "Motor", Width: 12},
	{Title: "Gear", Width: 12},
	{Title: "VSN", Width: 12},
	{Title: "WIN", Width: 12},
	{Title: "Status", Width: 9},
	{Title: "Audio", Width: 5},
}

// NewModel creates a dashboard polling source every interval.
func NewModel(source Source, serverURL string, interval time.Duration) Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("51"))

	t := table.New(
		table.WithColumns(tableColumns),
		table.WithHeight(tableRows),
		table.WithFocused(true),
	)
	t.SetStyles(styles)

	return Model{
		source:    source,
		serverURL: serverURL,
		interval:  interval,
		qualityProgress: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
		records:        t,
		qualityHistory: make([]float64, 0, historySize),
	}
}

// qualityBadge colors the quality rate.
func qualityBadge(rate, total int) string {
	switch {
	case total == 0:
		return dimStyle.Render("○ NO DATA")
	case rate >= 90:
		return healthyStyle.Render("✓ ON TARGET")
	case rate >= 70:
		return warningStyle.Render("⚠ DRIFTING")
	}
	return errorStyle.Render("✗ OFF TARGET")
}

func statusCell(s record.Status) string {
	if s == record.StatusGood {
		return "✓ Good"
	}
	return "✗ " + string(s)
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

// createRPMChart draws one bar per RPM bucket.
func createRPMChart(summary analytics.Summary) string {
	data := make([]barchart.BarData, 0, len(record.Buckets))
	for _, b := range record.Buckets {
		data = append(data, barchart.BarData{
			Label: strings.TrimPrefix(string(b), "rpm"),
			Values: []barchart.BarValue{
				{Name: string(b), Value: float64(summary.ByRPM[b]), Style: barStyle},
			},
		})
	}

	chart := barchart.New(chartWidth, chartHeight)
	chart.PushAll(data)
	chart.Draw()
	return chart.View()
}

// tableRowsFor returns the newest records first.
func tableRowsFor(records []record.Record) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		rows = append(rows, table.Row{
			FormatClock(r.Timestamp),
			r.MotorID,
			r.GearID,
			r.VehicleSerialNumber,
			r.WinNumber,
			statusCell(r.Status),
			FormatAudio(r.AudioFiles),
		})
	}
	return rows
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.source),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshot reads records and analytics from the server.
func fetchSnapshot(source Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		summary, err := source.Analytics(ctx)
		if err != nil {
			return errMsg(err)
		}
		records, err := source.Records(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg{Summary: summary, Records: records}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.source)
		}
		var cmd tea.Cmd
		m.records, cmd = m.records.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.source),
		)

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		if m.snapshot.Summary.Total > 0 {
			m.qualityHistory = appendToHistory(m.qualityHistory, float64(m.snapshot.Summary.QualityRate))
		}
		m.records.SetRows(tableRowsFor(m.snapshot.Records))
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("motorqc Dashboard")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach motorqcd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.serverURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Start the daemon with: motorqcd") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderTiles() string {
	s := m.snapshot.Summary
	tile := func(label, value string) string {
		return tileStyle.Render(labelStyle.Render(label) + "\n" + valueStyle.Render(value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		tile("Total", FormatCount(s.Total)),
		tile("Good", FormatCount(s.Good)),
		tile("Not Good", FormatCount(s.NotGood)),
		tile("Quality", FormatQualityRate(s.QualityRate)),
		tile("Audio", FormatCount(s.AudioRecordings)),
	)
}

func (m Model) renderDashboard() string {
	var content string
	s := m.snapshot.Summary

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	content += headerStyle.Render(" motorqc Monitor ") + "\n"
	content += fmt.Sprintf("%s   %s   %s",
		qualityBadge(s.QualityRate, s.Total),
		dimStyle.Render(m.serverURL),
		dimStyle.Render(lastUpdateStr)) + "\n"

	content += "\n" + m.renderTiles() + "\n"

	content += "\n" + sectionStyle.Render("┃ Quality Rate") + "\n"
	content += labelStyle.Render("  Rate: ") +
		m.qualityProgress.ViewAs(float64(s.QualityRate)/100) +
		"   " + createSparkline(m.qualityHistory) + "\n"

	content += "\n" + sectionStyle.Render("┃ Audio by RPM") + "\n"
	content += createRPMChart(s) + "\n"

	content += "\n" + sectionStyle.Render("┃ Recent Records") + "\n"
	if len(m.snapshot.Records) == 0 {
		content += dimStyle.Render("  No records yet") + "\n"
	} else {
		content += m.records.View() + "\n"
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerKeyStyle.Render("[↑/↓]") + footerStyle.Render(" scroll  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}

// Run starts the dashboard on the terminal and blocks until the user quits.
func Run(ctx context.Context, source Source, serverURL string, interval time.Duration) error {
	p := tea.NewProgram(NewModel(source, serverURL, interval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
