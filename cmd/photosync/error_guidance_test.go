package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"photosync/internal/syncerr"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := syncerr.Transient("blob.upload", &net.DNSError{Err: "no such host", Name: "minio.local", IsTemporary: true})
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify blob.endpoint is reachable from this host.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
}

func TestFormatCLIError_RunFailedGuidance(t *testing.T) {
	lines := formatCLIError(&runFailedError{what: "upload"})
	if lines[0] != "upload did not succeed" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !containsLine(lines, "hint: rerun with --output json to see the reason for each failed item.") {
		t.Fatalf("expected per-item guidance, got %v", lines)
	}
}

func TestFormatCLIError_LockGuidance(t *testing.T) {
	err := fmt.Errorf("%w (lock held on /tmp/x.lock)", errRunActive)
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: wait for the other run to finish; a stale lock file is released when its process exits.") {
		t.Fatalf("expected lock guidance, got %v", lines)
	}
}

func TestFormatCLIError_KindGuidance(t *testing.T) {
	tests := []struct {
		err  error
		hint string
	}{
		{syncerr.Validationf("import", "import directory is required"), "hint: check folder arguments and settings; list them with: photosync config list"},
		{syncerr.Transient("ledger.ping", errors.New("database is locked")), "hint: the ledger or blob store was temporarily unavailable; retry shortly or raise retry.max_attempts."},
		{syncerr.Permanent("blob.ping", errors.New("AccessDenied")), "hint: verify blob.bucket and the PHOTOSYNC_BLOB_ACCESS_KEY / PHOTOSYNC_BLOB_SECRET_KEY credentials."},
		{&syncerr.InvalidFieldError{Field: "code"}, "hint: writeall accepts imageData or blobPath as the field to reset."},
		{fmt.Errorf("ping: %w", context.DeadlineExceeded), "hint: the operation timed out; check ledger and blob store health."},
	}
	for _, tc := range tests {
		lines := formatCLIError(tc.err)
		if !containsLine(lines, tc.hint) {
			t.Fatalf("expected %q for %v, got %v", tc.hint, tc.err, lines)
		}
	}
}

func TestFormatCLIError_PlainError(t *testing.T) {
	lines := formatCLIError(errors.New("boom"))
	if len(lines) != 1 || lines[0] != "boom" {
		t.Fatalf("expected the bare message, got %v", lines)
	}
	if formatCLIError(nil) != nil {
		t.Fatal("nil error yields no lines")
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
