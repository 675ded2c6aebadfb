package main

import (
	"github.com/spf13/cobra"

	"filedrop/internal/api"
	"filedrop/internal/config"
)

type removeOutcome struct {
	Key     string `json:"key" yaml:"key"`
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message" yaml:"message"`
}

func newRemoveCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"delete"},
		Short:   "Delete stored files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				outcomes := make([]removeOutcome, 0, len(args))
				for _, key := range args {
					resp, err := client.DeleteFile(cmd.Context(), key)
					if err != nil {
						return err
					}
					outcomes = append(outcomes, removeOutcome{Key: key, Success: resp.Success, Message: resp.Message})
					if !*structured {
						if err := writePlain("deleted %s\n", key); err != nil {
							return err
						}
					}
				}
				if *structured {
					return writeStructured(outcomes)
				}
				return nil
			})
		},
	}
}
