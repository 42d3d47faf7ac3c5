package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgvault/internal/envelope"
	"imgvault/internal/format"
)

func newKeygenCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 encryption key for encryption_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := envelope.GenerateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if opts.jsonOutput {
				return writeOutput(cmd, opts, map[string]string{"encryption_key": key}, nil)
			}
			return format.PlainFormatter{}.Write(cmd.OutOrStdout(), key)
		},
	}
}
