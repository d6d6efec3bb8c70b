package main

import (
	"github.com/spf13/cobra"

	"photosync/internal/config"
	"photosync/internal/pipeline"
)

func newToBlobStoreCmd(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "toblobstore",
		Aliases: []string{"upload"},
		Short:   "Upload local image data to the blob store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), cfg, engineOptions{blobs: true}, func(eng *engine) error {
				return finishBatch(eng.runner.Upload(cmd.Context(), pipeline.UploadOptions{Force: force}))
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-upload records whose local data changed since their last upload")
	return cmd
}

func newFromBlobStoreCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "fromblobstore",
		Aliases: []string{"download"},
		Short:   "Restore missing local image data from the blob store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), cfg, engineOptions{blobs: true}, func(eng *engine) error {
				return finishBatch(eng.runner.Download(cmd.Context()))
			})
		},
	}
}
