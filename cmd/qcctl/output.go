package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/motorqc/internal/monitor"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (use table, json or yaml)", s)
}

func writeRecords(w io.Writer, format outputFormat, records []record.Record) error {
	if format != formatTable {
		if records == nil {
			records = []record.Record{}
		}
		return writeStructured(w, format, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No records")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TIME", "MOTOR", "GEAR", "VSN", "WIN", "STATUS", "AUDIO")
	for _, r := range records {
		t.Row(
			r.ID,
			r.Timestamp,
			r.MotorID,
			r.GearID,
			r.VehicleSerialNumber,
			r.WinNumber,
			string(r.Status),
			monitor.FormatAudio(r.AudioFiles),
		)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// writeStructured writes v as indented JSON or as YAML. YAML goes through
// JSON first so both formats share the JSON field names.
func writeStructured(w io.Writer, format outputFormat, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	if format == formatJSON {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}
