package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/motorqc/internal/export"
	"github.com/fyrsmithlabs/motorqc/internal/monitor"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <csv|excel|upload>",
		Short: "Export every record",
		Long: `Export every record on the server.

  csv     write a CSV file in the server's export directory
  excel   write an .xlsx workbook in the server's export directory
  upload  send the CSV to the configured upload endpoint

Examples:
  qcctl export csv
  qcctl export upload`,
		Args:      requireOne("csv", "excel", "upload"),
		ValidArgs: []string{"csv", "excel", "upload"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !out.Success {
				return errors.New(out.Message)
			}
			c.printf("%s\n", out.Message)
			if out.Detail != "" {
				c.printf("%s\n", out.Detail)
			}
			printExportResult(c, out)
			return nil
		},
	}
}

// printExportResult shows where the export went.
func printExportResult(c *cli, out export.Outcome) {
	if len(out.Result) == 0 {
		return
	}
	var res struct {
		Path string `json:"path"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(out.Result, &res); err != nil {
		return
	}
	if res.Path != "" {
		c.printf("File: %s\n", res.Path)
	}
	if res.Key != "" {
		c.printf("Key:  %s\n", res.Key)
	}
}

func newAnalyticsCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show inspection totals and quality rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			summary, err := c.client().Analytics(cmd.Context())
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeStructured(c.out, format, summary)
			}

			c.printf("Total:            %s\n", monitor.FormatCount(summary.Total))
			c.printf("Good:             %s\n", monitor.FormatCount(summary.Good))
			c.printf("Not Good:         %s\n", monitor.FormatCount(summary.NotGood))
			c.printf("Quality Rate:     %s\n", monitor.FormatQualityRate(summary.QualityRate))
			c.printf("Audio Recordings: %s\n", monitor.FormatCount(summary.AudioRecordings))
			for _, b := range record.Buckets {
				c.printf("  %-8s %d\n", b, summary.ByRPM[b])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(formatTable), "output format: table, json or yaml")
	return cmd
}

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check motorqcd server health",
		Long: `Check the health status of the motorqcd server.

Examples:
  qcctl health
  qcctl health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := c.client().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to reach %s: %w", c.serverURL, err)
			}
			c.printf("Server Status: %s\n", h.Status)
			c.printf("Version:       %s\n", h.Version)
			c.printf("Records:       %d\n", h.Records)
			return nil
		},
	}
}

func newDashboardCmd(c *cli) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the live quality dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			return monitor.Run(cmd.Context(), c.client(), c.serverURL, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "refresh interval")
	return cmd
}
