package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safething/safething-go/cmd/thingctl/logcmd"
)

func newLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "View and analyze protocol capture files (.tlog)",
	}
	cmd.AddCommand(newLogViewCommand())
	cmd.AddCommand(newLogExportCommand())
	cmd.AddCommand(newLogFilterCommand())
	cmd.AddCommand(newLogStatsCommand())
	return cmd
}

func addFilterFlags(cmd *cobra.Command, o *logcmd.Options) {
	f := cmd.Flags()
	f.StringVar(&o.SessionID, "session", "", "Filter by session ID")
	f.StringVar(&o.ThingID, "thing", "", "Filter by Thing id")
	f.StringVar(&o.Key, "key", "", "Filter by store key")
	f.StringVar(&o.TimeStart, "time-start", "", "Only events at or after this time (RFC3339)")
	f.StringVar(&o.TimeEnd, "time-end", "", "Only events at or before this time (RFC3339)")
	f.StringVar(&o.Layer, "layer", "", "Filter by layer: store, subscription, action, thing")
	f.StringVar(&o.Direction, "direction", "", "Filter by direction: in, out")
	f.StringVar(&o.Category, "category", "", "Filter by category: operation, notification, state, error")
}

func newLogViewCommand() *cobra.Command {
	var o logcmd.Options
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Print protocol events in human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return logcmd.RunView(args[0], o, os.Stdout)
		},
	}
	addFilterFlags(cmd, &o)
	return cmd
}

func newLogExportCommand() *cobra.Command {
	var (
		o      logcmd.Options
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export protocol events as jsonl or csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return logcmd.RunExport(args[0], format, o, w)
		},
	}
	addFilterFlags(cmd, &o)
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format: jsonl, csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newLogFilterCommand() *cobra.Command {
	var (
		o      logcmd.Options
		output string
	)
	cmd := &cobra.Command{
		Use:   "filter <file>",
		Short: "Write the matching events to a new capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			n, err := logcmd.RunFilter(args[0], output, o)
			if err != nil {
				return err
			}
			fmt.Printf("Filtered %d events to %s\n", n, output)
			return nil
		},
	}
	addFilterFlags(cmd, &o)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output .tlog file")
	return cmd
}

func newLogStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print statistics about a capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return logcmd.RunStats(args[0], os.Stdout)
		},
	}
}
