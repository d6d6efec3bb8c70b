package main

import (
	"github.com/spf13/cobra"

	"photosync/internal/config"
)

func newImportCmd(cfg *config.Config) *cobra.Command {
	var noArchive bool

	cmd := &cobra.Command{
		Use:   "import [folder]",
		Short: "Import JPEG files from a folder into the ledger",
		Long: "Import every .jpg/.jpeg file directly inside folder (default import.dir). " +
			"The file name without extension is the record code. Imported files are " +
			"moved to import.archive_dir when it is set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cfg.ImportOptions(optionalArg(args))
			if noArchive {
				opts.ArchiveDir = ""
				opts.DuplicatesDir = ""
			}
			return withEngine(cmd.Context(), cfg, engineOptions{}, func(eng *engine) error {
				return finishBatch(eng.runner.Import(cmd.Context(), opts))
			})
		},
	}

	cmd.Flags().BoolVar(&noArchive, "no-archive", false, "leave imported files in place")
	return cmd
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
