package models

import "testing"

func TestParseField(t *testing.T) {
	tests := []struct {
		raw     string
		want    Field
		wantErr bool
	}{
		{raw: "imageData", want: FieldImageData},
		{raw: "ImageData", want: FieldImageData},
		{raw: "image_data", want: FieldImageData},
		{raw: " blobPath ", want: FieldBlobPath},
		{raw: "blob_path", want: FieldBlobPath},
		{raw: "contentHash", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseField(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("parse %q: expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestPresenceHelpers(t *testing.T) {
	rec := PhotoRecord{Code: "A1"}
	if rec.HasImageData() || rec.HasBlobPath() {
		t.Fatalf("expected empty record, got %+v", rec)
	}
	rec.ImageData = []byte{}
	if rec.HasImageData() {
		t.Fatal("zero-length payload should not count as present")
	}
	rec.ImageData = []byte{0xff}
	if !rec.HasImageData() {
		t.Fatal("one-byte payload should count as present")
	}
	rec.BlobPath = "   "
	if rec.HasBlobPath() {
		t.Fatal("blank blob path should not count as present")
	}
}

func TestStateNames(t *testing.T) {
	if StorageHybrid.String() != "hybrid" {
		t.Fatalf("unexpected storage name %q", StorageHybrid.String())
	}
	if ExportCurrent.String() != "export_current" {
		t.Fatalf("unexpected export name %q", ExportCurrent.String())
	}
	text, err := SyncNeeded.MarshalText()
	if err != nil || string(text) != "sync_needed" {
		t.Fatalf("unexpected blob sync text %q (%v)", text, err)
	}
}
