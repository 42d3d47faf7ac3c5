package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgvault/internal/config"
	"imgvault/internal/format"
)

func newConfigCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration",
	}

	cmd.AddCommand(newConfigGetCmd(opts))
	cmd.AddCommand(newConfigSetCmd(opts))
	cmd.AddCommand(newConfigKeysCmd())
	return cmd
}

func newConfigGetCmd(opts *cliOptions) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get an effective config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %s)", key, strings.Join(config.AllowedKeys(), ", "))
			}
			value, err := opts.cfg.Get(key)
			if err != nil {
				return err
			}
			if config.IsSecretKey(key) && !showSecrets {
				value = maskSecret(value)
			}
			return format.PlainFormatter{}.Write(cmd.OutOrStdout(), value)
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values in full")
	return cmd
}

func newConfigSetCmd(opts *cliOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in a TOML config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = opts.cfg.SourcePath
			}
			if path == "" {
				path = config.DefaultConfigFileName
			}
			return config.SetKey(path, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "config file to edit (default: the loaded file or ./imgvault.toml)")
	return cmd
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List settable config keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return format.PlainFormatter{}.Write(cmd.OutOrStdout(), strings.Join(config.AllowedKeys(), "\n"))
		},
	}
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + strings.Repeat("*", 8)
}
