// Package main implements qcctl, the command-line client for motorqcd.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/motorqc/internal/client"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the flags shared by every command.
type cli struct {
	serverURL string
	station   string
	operator  string
	timeout   time.Duration

	in  io.Reader
	out io.Writer
}

func (c *cli) client() *client.Client {
	return client.New(c.serverURL,
		client.WithTimeout(c.timeout),
		client.WithStation(c.station, c.operator))
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{in: in, out: out}

	root := &cobra.Command{
		Use:   "qcctl",
		Short: "CLI for the motorqc quality-control daemon",
		Long: `qcctl is a command-line interface for the motorqcd server.
It records motor and gear inspections, lists and clears them, runs exports
and opens a live dashboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&c.serverURL, "server", client.DefaultServerURL, "motorqcd server URL")
	root.PersistentFlags().StringVar(&c.station, "station", os.Getenv("MOTORQC_STATION"), "inspection station id sent with each request")
	root.PersistentFlags().StringVar(&c.operator, "operator", os.Getenv("MOTORQC_OPERATOR"), "operator id sent with each request")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newAddCmd(c),
		newListCmd(c),
		newClearCmd(c),
		newExportCmd(c),
		newAnalyticsCmd(c),
		newHealthCmd(c),
		newDashboardCmd(c),
	)
	return root
}
