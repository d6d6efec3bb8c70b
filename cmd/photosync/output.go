package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"photosync/internal/format"
	"photosync/internal/models"
	"photosync/internal/pipeline"
	"photosync/internal/workflow"
)

// outputFormatter is nil for text output.
var outputFormatter format.Formatter

var stdout io.Writer = os.Stdout

// runFailedError marks a run that completed but did not succeed. The
// results have already been written.
type runFailedError struct {
	what string
}

func (e *runFailedError) Error() string {
	return fmt.Sprintf("%s did not succeed", e.what)
}

func writeStructured(payload any) (bool, error) {
	if outputFormatter == nil {
		return false, nil
	}
	return true, outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

// finishBatch writes b and converts an unsuccessful batch into an error.
func finishBatch(b pipeline.BatchResult, runErr error) error {
	if err := writeBatch(b); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !b.Success {
		return &runFailedError{what: b.Stage}
	}
	return nil
}

func writeBatch(b pipeline.BatchResult) error {
	if ok, err := writeStructured(b); ok {
		return err
	}
	if err := writePlain("%s\n", formatBatchLine(b)); err != nil {
		return err
	}
	return writeItemProblems(b.Items)
}

func formatBatchLine(b pipeline.BatchResult) string {
	parts := []string{
		fmt.Sprintf("found: %d", b.Found),
		fmt.Sprintf("succeeded: %d", b.Succeeded),
		fmt.Sprintf("failed: %d", b.Failed),
		fmt.Sprintf("skipped: %d", b.Skipped),
	}
	if b.Stage == pipeline.StageImport {
		parts = append(parts,
			fmt.Sprintf("duplicates: %d", b.Duplicates),
			fmt.Sprintf("archived: %d", b.Archived),
		)
	}
	line := fmt.Sprintf("%s %s (%s)", statusMark(b.Success), b.Stage, strings.Join(parts, ", "))
	if b.Duration > 0 {
		line += " in " + b.Duration.Round(time.Millisecond).String()
	}
	if b.Error != "" {
		line += " - " + b.Error
	}
	return line
}

func writeItemProblems(items []pipeline.ItemResult) error {
	for _, item := range items {
		if item.Outcome == pipeline.OutcomeSucceeded {
			continue
		}
		subject := item.Code
		if subject == "" {
			subject = item.Path
		}
		detail := item.Reason
		if item.DuplicateOf != "" {
			detail = "duplicate of " + item.DuplicateOf
		}
		if err := writePlain("  %s %s: %s\n", item.Outcome, subject, detail); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkflow(res workflow.Result) error {
	if ok, err := writeStructured(res); ok {
		return err
	}
	mode := "run"
	if res.DryRun {
		mode = "dry run"
	}
	if err := writePlain("workflow %s %s\n", mode, res.RunID); err != nil {
		return err
	}
	if res.ClearedField != "" {
		verb := "cleared"
		if res.DryRun {
			verb = "would clear"
		}
		if err := writePlain("  %s %s on %d records\n", verb, res.ClearedField, res.ClearedCount); err != nil {
			return err
		}
	}
	for _, sr := range res.Stages {
		var line string
		switch {
		case sr.Batch != nil:
			line = formatBatchLine(*sr.Batch)
		case sr.Error != "":
			line = fmt.Sprintf("%s %s - %s", statusMark(false), sr.Stage, sr.Error)
		default:
			line = fmt.Sprintf("%s %s (candidates: %d)", statusMark(true), sr.Stage, sr.Candidates)
		}
		if err := writePlain("  %s\n", line); err != nil {
			return err
		}
		if sr.Batch != nil {
			if err := writeItemProblems(sr.Batch.Items); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStatus(snap models.StatusSnapshot) error {
	if ok, err := writeStructured(snap); ok {
		return err
	}
	lines := []string{
		fmt.Sprintf("records: %d", snap.TotalRecords),
		fmt.Sprintf("with_image_data: %d", snap.WithImageData),
		fmt.Sprintf("with_blob_path: %d", snap.WithBlobPath),
		fmt.Sprintf("storage: empty=%d local_only=%d remote_only=%d hybrid=%d", snap.Empty, snap.LocalOnly, snap.RemoteOnly, snap.Hybrid),
		fmt.Sprintf("local_bytes: %s", humanize.IBytes(uint64(max(snap.TotalBytes, 0)))),
		fmt.Sprintf("duplicate_hashes: %d", snap.DuplicateHashes),
		formatTransfer("imports", snap.Imports),
		formatTransfer("exports", snap.Exports),
		formatTransfer("uploads", snap.Uploads),
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

// syncReport is the syncstatus payload.
type syncReport struct {
	PendingBlobSync int64              `json:"pending_blob_sync" yaml:"pending_blob_sync"`
	NeedingExport   int64              `json:"needing_export" yaml:"needing_export"`
	MissingBlob     int64              `json:"missing_blob" yaml:"missing_blob"`
	MissingLocal    int64              `json:"missing_local" yaml:"missing_local"`
	LastUpload      *time.Time         `json:"last_upload,omitempty" yaml:"last_upload,omitempty"`
	LastExport      *time.Time         `json:"last_export,omitempty" yaml:"last_export,omitempty"`
	Records         []models.SyncState `json:"records,omitempty" yaml:"records,omitempty"`
}

func writeSyncReport(r syncReport) error {
	if ok, err := writeStructured(r); ok {
		return err
	}
	lines := []string{
		fmt.Sprintf("pending_blob_sync: %d", r.PendingBlobSync),
		fmt.Sprintf("needing_export: %d", r.NeedingExport),
		fmt.Sprintf("missing_blob: %d", r.MissingBlob),
		fmt.Sprintf("missing_local: %d", r.MissingLocal),
		fmt.Sprintf("last_upload: %s", formatOptionalTime(r.LastUpload)),
		fmt.Sprintf("last_export: %s", formatOptionalTime(r.LastExport)),
	}
	for _, st := range r.Records {
		lines = append(lines, fmt.Sprintf("  %s storage=%s export=%s blob=%s", st.Code, st.Storage, st.Export, st.BlobSync))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatTransfer(label string, s models.TransferStats) string {
	line := fmt.Sprintf("%s: %d", label, s.Count)
	if s.Latest != nil {
		line += fmt.Sprintf(" (latest %s, %s)", formatTime(*s.Latest), humanize.Time(*s.Latest))
	}
	return line
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func statusMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}
