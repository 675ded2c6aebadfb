package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"filedrop/internal/api"
	"filedrop/internal/config"
	"filedrop/internal/models"
)

type uploadOutcome struct {
	Path      string           `json:"path" yaml:"path"`
	Uploaded  bool             `json:"uploaded" yaml:"uploaded"`
	Duplicate bool             `json:"duplicate" yaml:"duplicate"`
	File      *models.FileInfo `json:"file,omitempty" yaml:"file,omitempty"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
}

func newUploadCmd(cfg *config.Config, structured *bool) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name can only be used with a single file")
			}
			return withClient(cfg, func(client *api.Client) error {
				outcomes := make([]uploadOutcome, 0, len(args))
				failed := 0
				for _, path := range args {
					outcome, err := uploadOne(cmd, client, path, name)
					if err != nil {
						if _, ok := api.AsAPIError(err); !ok {
							return err
						}
						failed++
					}
					outcomes = append(outcomes, outcome)
					if !*structured {
						if err := writeUploadOutcome(outcome); err != nil {
							return err
						}
					}
				}

				if *structured {
					if err := writeStructured(outcomes); err != nil {
						return err
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d uploads rejected", failed, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "store under this filename instead of the local basename")
	return cmd
}

func uploadOne(cmd *cobra.Command, client *api.Client, path, name string) (uploadOutcome, error) {
	outcome := uploadOutcome{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return outcome, err
	}
	defer f.Close()

	if name == "" {
		name = filepath.Base(path)
	}
	resp, err := client.Upload(cmd.Context(), name, mime.TypeByExtension(filepath.Ext(name)), f)
	if err != nil {
		if apiErr, ok := api.AsAPIError(err); ok {
			outcome.Duplicate = apiErr.IsDuplicate()
			outcome.File = apiErr.Existing
			outcome.Error = apiErr.Message
		}
		return outcome, err
	}
	outcome.Uploaded = true
	outcome.File = resp.File
	return outcome, nil
}

func writeUploadOutcome(o uploadOutcome) error {
	switch {
	case o.Uploaded && o.File != nil:
		return writePlain("uploaded %s -> %s (%s)\n", o.Path, o.File.Key, formatSize(o.File.Size))
	case o.Duplicate && o.File != nil:
		return writePlain("duplicate %s: already stored as %s\n", o.Path, o.File.Key)
	default:
		return writePlain("failed %s: %s\n", o.Path, o.Error)
	}
}
