package storage

import (
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	takenAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	got := ObjectKey("A1042", takenAt)
	want := "linkedin_profiles/A1042_20260314_150926.pdf"
	if got != want {
		t.Errorf("ObjectKey = %q, want %q", got, want)
	}
}

func TestObjectKeyNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 3, 14, 20, 9, 26, 0, loc)
	if got, want := ObjectKey("A1", local), ObjectKey("A1", local.UTC()); got != want {
		t.Errorf("local and UTC timestamps produced different keys: %q vs %q", got, want)
	}
}

func TestObjectURL(t *testing.T) {
	u := &Uploader{bucket: "pdfs", publicURL: "https://cdn.example.com"}
	if got := u.objectURL("linkedin_profiles/x.pdf"); got != "https://cdn.example.com/linkedin_profiles/x.pdf" {
		t.Errorf("unexpected public URL: %s", got)
	}

	u = &Uploader{bucket: "pdfs"}
	if got := u.objectURL("linkedin_profiles/x.pdf"); got != "s3://pdfs/linkedin_profiles/x.pdf" {
		t.Errorf("unexpected fallback URL: %s", got)
	}
}
