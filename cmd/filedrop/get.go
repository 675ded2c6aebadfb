package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"filedrop/internal/api"
	"filedrop/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Download a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withClient(cfg, func(client *api.Client) error {
				if output == "-" {
					_, err := client.Download(cmd.Context(), key, stdout)
					return err
				}
				return downloadToFile(cmd, client, key, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path, or - for stdout (default: original filename)")
	return cmd
}

// downloadToFile writes into a temp file next to the destination and renames
// it once the body is complete. Without an explicit path the file lands in
// the current directory under its original name.
func downloadToFile(cmd *cobra.Command, client *api.Client, key, output string) error {
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}
	tmp, err := os.CreateTemp(dir, ".filedrop-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	info, err := client.Download(cmd.Context(), key, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	dest := output
	if dest == "" {
		dest = safeLocalName(info.Name, key)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	slog.Debug("downloaded file", "key", key, "path", dest, "size", info.Size)
	return writePlain("saved %s (%s)\n", dest, formatSize(info.Size))
}

// safeLocalName keeps only the base of a server-supplied name.
func safeLocalName(name, key string) string {
	for _, candidate := range []string{name, key} {
		base := filepath.Base(filepath.FromSlash(candidate))
		if base != "." && base != ".." && base != string(filepath.Separator) && base != "" {
			return base
		}
	}
	return fmt.Sprintf("download-%d", now().Unix())
}
