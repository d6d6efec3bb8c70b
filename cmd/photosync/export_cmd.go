package main

import (
	"github.com/spf13/cobra"

	"photosync/internal/config"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	var (
		incremental bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "export [folder]",
		Short: "Write ledger image data to a folder",
		Long: "Write every record with local image data to folder (default export.dir) " +
			"using export.filename_template. --incremental only writes records changed " +
			"since their last export; --force ignores --incremental.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := cfg.ExportOptions(optionalArg(args), incremental, force)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), cfg, engineOptions{}, func(eng *engine) error {
				return finishBatch(eng.runner.Export(cmd.Context(), opts))
			})
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "only export records changed since their last export")
	cmd.Flags().BoolVar(&force, "force", false, "export every record regardless of --incremental")
	return cmd
}
