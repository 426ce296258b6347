package workspace

import "testing"

func TestFileExtensionAndAllowList(t *testing.T) {
	cases := []struct {
		name    string
		ext     string
		allowed bool
	}{
		{"Report.PDF", "pdf", true},
		{"notes.md", "md", true},
		{"archive.tar.gz", "gz", false},
		{"noext", "", false},
		{"data.json", "json", true},
		{"slides.pptx", "pptx", false},
	}
	for _, tc := range cases {
		if got := FileExtension(tc.name); got != tc.ext {
			t.Fatalf("%s ext: want=%q got=%q", tc.name, tc.ext, got)
		}
		if got := IsAllowedExtension(tc.ext); got != tc.allowed {
			t.Fatalf("%s allowed: want=%v got=%v", tc.name, tc.allowed, got)
		}
	}
}

func TestMimeType(t *testing.T) {
	if got := MimeType("a.docx"); got != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Fatalf("docx: got=%q", got)
	}
	if got := MimeType("a.bin"); got != "application/octet-stream" {
		t.Fatalf("fallback: got=%q", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := map[int64]string{
		0:                "0 Bytes",
		1536:             "1.5 KB",
		MaxDocumentBytes: "10 MB",
	}
	for n, want := range cases {
		if got := FormatFileSize(n); got != want {
			t.Fatalf("%d: want=%q got=%q", n, want, got)
		}
	}
}
