package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filedrop/internal/config"
	"filedrop/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		structured bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "filedrop",
		Short:         "Filedrop stores files behind a small HTTP API with content deduplication",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			structured = jsonOutput || yamlOutput
			if yamlOutput {
				outputFormatter = format.YAMLFormatter{}
			}

			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newUploadCmd(cfg, &structured),
		newListCmd(cfg, &structured),
		newGetCmd(cfg),
		newRemoveCmd(cfg, &structured),
		newInfoCmd(cfg, &structured),
		newConfigCmd(cfg),
	)

	return cmd
}
