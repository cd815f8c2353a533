package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

func newAddCmd(c *cli) *cobra.Command {
	var form record.Form

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an inspection",
		Long: `Record one motor and gear inspection.

Examples:
  # Record a passing assembly
  qcctl add --motor M-1001 --gear G-77 --vsn VSN-9 --win WIN-4 --status Good

  # Record a failing one from another station
  qcctl add --station line-2 --motor M-1002 --gear G-78 --vsn VSN-9 --win WIN-5 --status "Not Good"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.client().Add(cmd.Context(), form)
			if err != nil {
				return err
			}
			c.printf("Recorded %s (%s, %s)\n", resp.Record.ID, resp.Record.MotorID, resp.Record.Status)
			if !resp.Persisted {
				c.printf("Warning: the server kept the record in memory but could not save it\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&form.MotorID, "motor", "", "motor id")
	cmd.Flags().StringVar(&form.GearID, "gear", "", "gear id")
	cmd.Flags().StringVar(&form.VehicleSerialNumber, "vsn", "", "vehicle serial number")
	cmd.Flags().StringVar(&form.WinNumber, "win", "", "WIN number")
	cmd.Flags().StringVar(&form.Status, "status", "", `inspection result: "Good" or "Not Good"`)
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded inspections",
		Long: `List every recorded inspection in the order it was captured.

Examples:
  qcctl list
  qcctl list -o json
  qcctl list -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			records, err := c.client().Records(cmd.Context())
			if err != nil {
				return err
			}
			return writeRecords(c.out, format, records)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(formatTable), "output format: table, json or yaml")
	return cmd
}

func newClearCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded inspection",
		Long: `Delete every recorded inspection. This cannot be undone.

Examples:
  qcctl clear
  qcctl clear --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(c, "Are you sure you want to clear all data? This action cannot be undone.") {
				c.printf("Aborted\n")
				return nil
			}
			if err := c.client().Clear(cmd.Context()); err != nil {
				return err
			}
			c.printf("All records cleared\n")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question on the command's input.
func confirm(c *cli, question string) bool {
	c.printf("%s [y/N]: ", question)
	answer, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// requireOne rejects anything but one positional argument from choices.
func requireOne(choices ...string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected one of: %s", strings.Join(choices, ", "))
		}
		for _, c := range choices {
			if args[0] == c {
				return nil
			}
		}
		return fmt.Errorf("unknown value %q, expected one of: %s", args[0], strings.Join(choices, ", "))
	}
}
