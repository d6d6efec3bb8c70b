package main

import (
	"context"
	"errors"
	"net"

	"photosync/internal/store"
	"photosync/internal/syncerr"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var runErr *runFailedError
	if errors.As(err, &runErr) {
		lines = append(lines, "hint: rerun with --output json to see the reason for each failed item.")
		return uniqueLines(lines)
	}

	if errors.Is(err, errRunActive) {
		lines = append(lines, "hint: wait for the other run to finish; a stale lock file is released when its process exits.")
		return uniqueLines(lines)
	}

	if errors.Is(err, store.ErrSchemaOutdated) {
		lines = append(lines, "hint: apply pending migrations with: photosync migrate")
		return uniqueLines(lines)
	}

	var fieldErr *syncerr.InvalidFieldError
	if errors.As(err, &fieldErr) {
		lines = append(lines, "hint: writeall accepts imageData or blobPath as the field to reset.")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: the operation timed out; check ledger and blob store health.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: verify blob.endpoint is reachable from this host.",
			"hint: transient failures are retried retry.max_attempts times; raise it for flaky links.",
		)
		return uniqueLines(lines)
	}

	switch syncerr.KindOf(err) {
	case syncerr.KindValidation:
		lines = append(lines, "hint: check folder arguments and settings; list them with: photosync config list")
	case syncerr.KindTransient:
		lines = append(lines, "hint: the ledger or blob store was temporarily unavailable; retry shortly or raise retry.max_attempts.")
	case syncerr.KindPermanent:
		lines = append(lines, "hint: verify blob.bucket and the PHOTOSYNC_BLOB_ACCESS_KEY / PHOTOSYNC_BLOB_SECRET_KEY credentials.")
	case syncerr.KindNotFound:
		lines = append(lines, "hint: the referenced object is missing; run photosync syncstatus --detailed to inspect records.")
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
