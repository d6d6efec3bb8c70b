package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"photosync/internal/config"
	"photosync/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		outputName string
		logFlags   logSettings
	)

	cmd := &cobra.Command{
		Use:           "photosync",
		Short:         "Photosync keeps a photo folder, a ledger database and a blob store in step",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := configureLoggerForCLI(logFlags, logSettings{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Fprintln(os.Stderr, warning)
			}
			formatter, err := format.ForName(outputName)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVarP(&outputName, "output", "o", format.NameText, "output format: text|json|yaml")
	cmd.PersistentFlags().StringVar(&logFlags.Level, "log-level", "", "log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&logFlags.Format, "log-format", "", "log format: text|json")

	cmd.AddCommand(
		newImportCmd(cfg),
		newExportCmd(cfg),
		newToBlobStoreCmd(cfg),
		newFromBlobStoreCmd(cfg),
		newWriteAllCmd(cfg),
		newStatusCmd(cfg),
		newSyncStatusCmd(cfg),
		newConfigCmd(cfg),
		newMigrateCmd(cfg),
	)

	return cmd
}
