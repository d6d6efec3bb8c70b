package main

import (
	"context"

	"github.com/spf13/cobra"

	"photosync/internal/config"
	"photosync/internal/models"
	"photosync/internal/rules"
	"photosync/internal/store"
)

func newStatusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger totals and transfer history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cfg, func(st *store.Store) error {
				snap, err := st.SummaryStats(cmd.Context())
				if err != nil {
					return err
				}
				return writeStatus(snap)
			})
		},
	}
}

func newSyncStatusCmd(cfg *config.Config) *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "syncstatus",
		Short: "Show what the next upload, download and export would process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cfg, func(st *store.Store) error {
				report, err := buildSyncReport(cmd.Context(), st, detailed)
				if err != nil {
					return err
				}
				return writeSyncReport(report)
			})
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "list the sync state of every record")
	return cmd
}

func buildSyncReport(ctx context.Context, repo store.PhotoRepository, detailed bool) (syncReport, error) {
	snap, err := repo.SummaryStats(ctx)
	if err != nil {
		return syncReport{}, err
	}
	missingBlob, err := repo.FindMissingBlobPath(ctx)
	if err != nil {
		return syncReport{}, err
	}
	missingLocal, err := repo.FindMissingImageData(ctx)
	if err != nil {
		return syncReport{}, err
	}

	report := syncReport{
		PendingBlobSync: snap.PendingBlobSync,
		NeedingExport:   snap.NeedingExport,
		MissingBlob:     int64(len(missingBlob)),
		MissingLocal:    int64(len(missingLocal)),
		LastUpload:      snap.Uploads.Latest,
		LastExport:      snap.Exports.Latest,
	}
	if !detailed {
		return report, nil
	}

	records, err := repo.FindAll(ctx)
	if err != nil {
		return syncReport{}, err
	}
	report.Records = make([]models.SyncState, 0, len(records))
	for _, rec := range records {
		report.Records = append(report.Records, rules.Classify(rec))
	}
	return report, nil
}
