package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/csvcodec"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// SheetName is the worksheet the Excel target writes to.
const SheetName = "Records"

// Target is one export destination.
type Target interface {
	Name() string
	Export(ctx context.Context, records []record.Record) Outcome
}

// FileResult describes a written export file.
type FileResult struct {
	Path    string `json:"path"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// Registry maps target names to targets.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
}

// NewRegistry creates a registry holding targets.
func NewRegistry(targets ...Target) *Registry {
	r := &Registry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a target.
func (r *Registry) Register(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[t.Name()] = t
}

// Get returns the target registered under name.
func (r *Registry) Get(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export runs the named target. An unknown name is a failed outcome.
func (r *Registry) Export(ctx context.Context, name string, records []record.Record) Outcome {
	t, err := r.Get(name)
	if err != nil {
		return Failed(err)
	}
	return t.Export(ctx, records)
}

// fileTarget holds what the CSV and Excel targets share.
type fileTarget struct {
	dir     string
	now     func() time.Time
	logger  *zap.Logger
	metrics *Metrics
}

func newFileTarget(dir string, logger *zap.Logger) fileTarget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return fileTarget{
		dir:     dir,
		now:     time.Now,
		logger:  logger,
		metrics: NewMetrics(logger),
	}
}

// path names an export file. The random suffix keeps two exports in the
// same second apart.
func (f fileTarget) path(ext string) string {
	name := fmt.Sprintf("motor-data-%d-%s.%s", f.now().Unix(), uuid.NewString()[:8], ext)
	return filepath.Join(f.dir, name)
}

// reserve creates path exclusively so an existing export is never replaced.
func reserve(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	return file.Close()
}

func (f fileTarget) run(ctx context.Context, name, label, ext string, records []record.Record, write func(path string) error) Outcome {
	start := time.Now()
	res, err := f.write(records, ext, write)
	f.metrics.RecordExport(ctx, name, time.Since(start), len(records), err)
	if err != nil {
		f.logger.Warn("export file failed", zap.String("target", name), zap.Error(err))
		return Failed(err)
	}

	f.logger.Info("export file written",
		zap.String("target", name),
		zap.String("path", res.Path),
		zap.Int("records", res.Records))

	payload, err := json.Marshal(res)
	if err != nil {
		return Failed(err)
	}
	return Outcome{
		Success: true,
		Message: "Data exported as " + label,
		Detail:  fmt.Sprintf("%d records exported successfully", len(records)),
		Result:  payload,
	}
}

func (f fileTarget) write(records []record.Record, ext string, write func(path string) error) (FileResult, error) {
	if len(records) == 0 {
		return FileResult{}, ErrNothingToExport
	}
	if err := os.MkdirAll(f.dir, 0o750); err != nil {
		return FileResult{}, fmt.Errorf("creating export dir: %w", err)
	}
	path := f.path(ext)
	if err := reserve(path); err != nil {
		return FileResult{}, err
	}
	if err := write(path); err != nil {
		_ = os.Remove(path)
		return FileResult{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("stat export file: %w", err)
	}
	return FileResult{Path: path, Records: len(records), Bytes: info.Size()}, nil
}

// CSVFileTarget writes the CSV serialization to a file in a directory.
type CSVFileTarget struct {
	fileTarget
}

// NewCSVFileTarget creates a CSV target writing into dir.
func NewCSVFileTarget(dir string, logger *zap.Logger) *CSVFileTarget {
	return &CSVFileTarget{fileTarget: newFileTarget(dir, logger)}
}

// Name implements Target.
func (t *CSVFileTarget) Name() string { return "csv" }

// Export implements Target.
func (t *CSVFileTarget) Export(ctx context.Context, records []record.Record) Outcome {
	return t.run(ctx, t.Name(), "CSV", "csv", records, func(path string) error {
		text := csvcodec.Encode(record.FlattenAll(records))
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	})
}

// ExcelTarget writes records to an .xlsx workbook. The header row is the
// union of every record's columns, so no value is dropped.
type ExcelTarget struct {
	fileTarget
}

// NewExcelTarget creates an Excel target writing into dir.
func NewExcelTarget(dir string, logger *zap.Logger) *ExcelTarget {
	return &ExcelTarget{fileTarget: newFileTarget(dir, logger)}
}

// Name implements Target.
func (t *ExcelTarget) Name() string { return "excel" }

// Export implements Target.
func (t *ExcelTarget) Export(ctx context.Context, records []record.Record) Outcome {
	return t.run(ctx, t.Name(), "Excel", "xlsx", records, func(path string) error {
		return writeWorkbook(path, record.FlattenAll(records))
	})
}

func writeWorkbook(path string, rows []csvcodec.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header, aligned := csvcodec.Union(rows)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &cells); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for r, row := range aligned {
		values := make([]any, len(row))
		for i, field := range row {
			if field.Value == nil {
				values[i] = ""
				continue
			}
			values[i] = csvcodec.Stringify(field.Value)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", r+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
