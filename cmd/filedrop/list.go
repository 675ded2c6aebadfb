package main

import (
	"github.com/spf13/cobra"

	"filedrop/internal/api"
	"filedrop/internal/config"
)

func newListCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored files, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.ListFiles(cmd.Context())
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(resp)
				}
				return writeFileList(resp.Files)
			})
		},
	}
}
