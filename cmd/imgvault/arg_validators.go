package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func requireExactlyArgs(count int, message string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != count {
			return errors.New(message)
		}
		return nil
	}
}

var (
	requireImageID = requireExactlyArgs(1, "image id is required")
	requireJobID   = requireExactlyArgs(1, "job id is required")
)
