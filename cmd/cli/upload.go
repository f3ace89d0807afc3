package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/statement-extractor/internal/app"
	"github.com/dvloznov/statement-extractor/internal/gcsuploader"
	"github.com/spf13/cobra"
)

func newUploadCmd(c *cli) *cobra.Command {
	var bucket, prefix string

	cmd := &cobra.Command{
		Use:   "upload <statement.pdf>",
		Short: "Upload a statement PDF to GCS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.withLogger(cmd.Context())
			path := args[0]

			if bucket == "" {
				bucket = c.cfg.Storage.Bucket
			}
			if bucket == "" {
				return fmt.Errorf("--bucket or EXTRACTOR_STORAGE_BUCKET is required")
			}
			if !gcsuploader.IsPDF(path) {
				return fmt.Errorf("%s is not a .pdf file", path)
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			storage, err := gcsuploader.NewGCSStorageService(ctx)
			if err != nil {
				return err
			}
			defer storage.Close()

			store := &gcsuploader.BucketStore{Storage: storage, Bucket: bucket, Prefix: prefix}
			uri, err := store.Save(ctx, path, f)
			if err != nil {
				return err
			}

			c.log.Info().Str("file", path).Str("gcs_uri", uri).Msg("Uploaded statement")
			fmt.Fprintln(c.out, uri)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default EXTRACTOR_STORAGE_BUCKET)")
	cmd.Flags().StringVar(&prefix, "prefix", app.UploadPrefix, "object name prefix")
	return cmd
}
