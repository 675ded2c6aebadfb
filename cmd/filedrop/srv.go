package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"filedrop/internal/config"
	"filedrop/internal/objectstore"
	"filedrop/internal/server"
	"filedrop/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the filedrop API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			st, closeStore, err := openBackend(cmd.Context(), cfg.Storage, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			srv := server.New(addr, st, cfg.Storage.Backend, logger)
			srv.SetVersion(version)
			srv.ConfigureUploads(server.UploadOptions{
				MaxUploadBytes:     cfg.Uploads.MaxUploadBytes,
				MultipartMaxMemory: cfg.Uploads.MultipartMaxMemory,
				AllowedMediaTypes:  cfg.Uploads.AllowedMediaTypes,
				MaxConcurrent:      cfg.Uploads.MaxConcurrent,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}
}

// openBackend builds the object store named by storage.backend. The returned
// func releases it and is never nil.
func openBackend(ctx context.Context, sc config.StorageConfig, logger *slog.Logger) (objectstore.Store, func(), error) {
	noop := func() {}
	switch sc.Backend {
	case config.BackendSQLite:
		if sc.Path == "" {
			return nil, noop, fmt.Errorf("storage.path is required for the sqlite backend")
		}
		logger.Info("opening database", "path", sc.Path)
		st, err := store.Open(sc.Path)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.BackendLocal:
		if sc.Path == "" {
			return nil, noop, fmt.Errorf("storage.path is required for the local backend")
		}
		logger.Info("using local directory", "path", sc.Path)
		st, err := objectstore.NewLocal(sc.Path)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	case config.BackendMemory:
		logger.Warn("using in-memory storage; files are lost on exit")
		return objectstore.NewMemory(), noop, nil
	case config.BackendS3:
		logger.Info("using s3 bucket", "bucket", sc.S3.Bucket, "prefix", sc.S3.Prefix, "endpoint", sc.S3.Endpoint)
		st, err := objectstore.NewS3(ctx, objectstore.S3Options{
			Bucket:       sc.S3.Bucket,
			Region:       sc.S3.Region,
			Endpoint:     sc.S3.Endpoint,
			Prefix:       sc.S3.Prefix,
			UsePathStyle: sc.S3.UsePathStyle,
		})
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}
