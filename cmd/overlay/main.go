// Command overlay fetches cloud provider incidents and DShield port history
// for a date window and writes a normalized incident table, a daily series
// and an overlay chart.
//
// Usage:
//
//	overlay --start 2024-01-01 --end 2024-01-31 --ports 23,2323 --botnet-metric sources
//	overlay snapshot --dir internal/pipeline/testdata/run --start 2024-01-01 --end 2024-01-05
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the command-line overrides. Only flags the user set replace
// the environment configuration.
type options struct {
	start       string
	end         string
	ports       []string
	metric      string
	userAgent   string
	debug       bool
	outCSV      string
	outSeries   string
	outPlot     string
	fixturesDir string
	httpAddr    string
}

func newRootCmd() *cobra.Command {
	return newCommand(&options{})
}

func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Overlay cloud outages on DShield botnet activity",
		Long: `overlay pulls incident history from the AWS, Cloudflare and GCP status
pages and daily port activity from the DShield porthistory API, then writes
a normalized incident CSV, a daily series CSV and an overlay chart.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOverlay(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.start, "start", "", "window start date, YYYY-MM-DD (default: 30 days before end)")
	pf.StringVar(&opts.end, "end", "", "window end date, YYYY-MM-DD (default: today)")
	pf.StringSliceVar(&opts.ports, "ports", []string{"23", "2323", "7547", "5555"}, "DShield ports to sum")
	pf.StringVar(&opts.metric, "botnet-metric", "sources", "porthistory metric: records, sources, targets, tcp or udp")
	pf.StringVar(&opts.userAgent, "user-agent", "", "User-Agent sent to every upstream")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	f := cmd.Flags()
	f.StringVar(&opts.outCSV, "out-csv", "outages.csv", "incident table CSV path")
	f.StringVar(&opts.outSeries, "out-series", "botnet_daily.csv", "daily series CSV path (empty disables)")
	f.StringVar(&opts.outPlot, "out-plot", "overlay.png", "overlay chart path (empty disables)")
	f.StringVar(&opts.fixturesDir, "fixtures-dir", "", "replay saved payloads from this directory instead of the network")
	f.StringVar(&opts.httpAddr, "http-addr", "", "serve health, metrics and the run result on this address until interrupted")

	cmd.AddCommand(newSnapshotCmd(opts))
	cmd.CompletionOptions.DisableDefaultCmd = true
	return cmd
}
