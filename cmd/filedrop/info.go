package main

import (
	"github.com/spf13/cobra"

	"filedrop/internal/api"
	"filedrop/internal/config"
)

func newInfoCmd(cfg *config.Config, structured *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show storage backend and usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *structured {
					return writeStructured(resp)
				}

				_ = writePlain("api_url: %s\n", cfg.APIURL)
				_ = writePlain("backend: %s\n", resp.Backend)
				if cfg.Storage.Path != "" && resp.Backend == cfg.Storage.Backend {
					_ = writePlain("storage_path: %s\n", cfg.Storage.Path)
				}
				_ = writePlain("files: %d\n", resp.FileCount)
				_ = writePlain("total_size: %s\n", formatSize(resp.TotalBytes))
				return writePlain("server_version: %s\n", resp.Version)
			})
		},
	}
}
