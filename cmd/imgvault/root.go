package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/config"
)

const (
	apiURLEnvKey  = "IMGVAULT_API_URL"
	defaultAPIURL = "http://localhost:3000"
)

type cliOptions struct {
	configPath string
	logLevel   string
	apiURL     string
	jsonOutput bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:           "imgvault",
		Short:         "Imgvault is an anonymous encrypted image host backed by a chat channel",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			warning, err := configureLoggerForCLI(opts.logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $IMGVAULT_CONFIG or ./imgvault.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.apiURL, "api-url", "", "server URL for client commands (default $IMGVAULT_API_URL or "+defaultAPIURL+")")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newServeCmd(opts),
		newKeygenCmd(opts),
		newUploadCmd(opts),
		newUploadURLCmd(opts),
		newJobCmd(opts),
		newInfoCmd(opts),
		newFetchCmd(opts),
		newDeleteCmd(opts),
		newHealthCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

func (o *cliOptions) baseURL() string {
	if url := strings.TrimSpace(o.apiURL); url != "" {
		return url
	}
	if url := strings.TrimSpace(os.Getenv(apiURLEnvKey)); url != "" {
		return url
	}
	return defaultAPIURL
}

func (o *cliOptions) client() *api.Client {
	return api.NewClient(o.baseURL())
}
