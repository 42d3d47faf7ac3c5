package main

import (
	"github.com/spf13/cobra"

	"imgvault/internal/format"
)

// writeOutput prints payload as JSON when --json is set and as plain
// "key: value" lines otherwise.
func writeOutput(cmd *cobra.Command, opts *cliOptions, payload any, plain format.Fields) error {
	if opts.jsonOutput {
		return format.JSONFormatter{Indent: true}.Write(cmd.OutOrStdout(), payload)
	}
	return format.PlainFormatter{}.Write(cmd.OutOrStdout(), plain)
}
