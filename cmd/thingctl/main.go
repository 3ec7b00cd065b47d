// Command thingctl runs and drives SAFEthing Things.
//
// A Thing is a record in a shared store (in-memory, NATS JetStream KV or
// SQLite) holding its status, attributes, topics with their events,
// actions and incoming action requests. thingctl can run a Thing as a
// long-lived process with an HTTP surface, attach an interactive console
// to it, or perform one-shot operations against the store.
//
// Usage:
//
//	thingctl <command> [flags]
//
// Commands:
//
//	run        Register and run the configured Thing
//	console    Run the configured Thing with an interactive console
//	inspect    Print a Thing's record
//	notify     Publish an event on a topic of the configured Thing
//	set-attr   Set an attribute of the configured Thing
//	request    Send an action request and wait for it to finish
//	log        View and analyze protocol capture files
//	version    Print version information
//
// Examples:
//
//	# Run a Thing described by a profile against NATS
//	thingctl run --config garden.yaml --id garden-01
//
//	# Inspect another Thing
//	thingctl inspect --config garden.yaml printer-01
//
//	# Ask a Thing to perform an action
//	thingctl request --config garden.yaml printer-01 print report.pdf
//
//	# Show statistics of a capture
//	thingctl log stats garden.tlog
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safething/safething-go/pkg/version"
)

func main() {
	var opts globalOptions

	root := &cobra.Command{
		Use:           "thingctl",
		Short:         "Run and drive SAFEthing Things",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&opts.thingID, "id", "", "Thing id (overrides thing.id)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.protocolLog, "protocol-log", "", "Write protocol events to this .tlog file")

	root.AddCommand(newRunCommand(&opts))
	root.AddCommand(newConsoleCommand(&opts))
	root.AddCommand(newInspectCommand(&opts))
	root.AddCommand(newNotifyCommand(&opts))
	root.AddCommand(newSetAttrCommand(&opts))
	root.AddCommand(newRequestCommand(&opts))
	root.AddCommand(newLogCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
