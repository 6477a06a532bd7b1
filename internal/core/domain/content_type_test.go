package domain

import "testing"

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		declared string
		filename string
		want     ContentType
	}{
		{"text/plain", "notes.txt", ContentTypeText},
		{"text/plain; charset=utf-8", "notes.txt", ContentTypeText},
		{"text/markdown", "README.md", ContentTypeText},
		{"TEXT/CSV", "data.csv", ContentTypeText},
		{"application/json", "data.json", ContentTypeText},
		{"application/pdf", "report.pdf", ContentTypePDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "a.docx", ContentTypeWordDocument},
		{"application/vnd.oasis.opendocument.text", "a.odt", ContentTypeOpenDocument},
		{"application/rtf", "a.rtf", ContentTypeRTF},
		{"text/html", "index.html", ContentTypeHTML},
		{"image/png", "photo.png", ContentTypeUnsupported},
		{"application/zip", "archive.zip", ContentTypeUnsupported},
		{"", "notes.txt", ContentTypeText},
		{"application/octet-stream", "report.PDF", ContentTypePDF},
		{"application/octet-stream", "setup.exe", ContentTypeUnsupported},
		{"", "no-extension", ContentTypeText},
		{"application/octet-stream", "main.go", ContentTypeText},
		{"application/octet-stream", "script.py", ContentTypeText},
		{"binary/octet-stream", "Makefile", ContentTypeText},
		{"application/octet-stream", "clip.mp4", ContentTypeUnsupported},
		{"application/octet-stream", "photo.jpg", ContentTypeUnsupported},
		{"application/x-sh", "run.sh", ContentTypeText},
		{"application/toml", "config.toml", ContentTypeText},
		{"audio/mpeg", "song.mp3", ContentTypeUnsupported},
		{"application/gzip", "logs.gz", ContentTypeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.declared+"|"+tt.filename, func(t *testing.T) {
			if got := ResolveContentType(tt.declared, tt.filename); got != tt.want {
				t.Errorf("ResolveContentType(%q, %q) = %s, want %s", tt.declared, tt.filename, got, tt.want)
			}
		})
	}
}

func TestContentType_String(t *testing.T) {
	if ContentTypePDF.String() != "pdf" {
		t.Errorf("expected pdf, got %s", ContentTypePDF.String())
	}
	if ContentType(99).String() != "unsupported" {
		t.Errorf("expected unknown values to render as unsupported, got %s", ContentType(99).String())
	}
}

func TestContentType_Paginated(t *testing.T) {
	if !ContentTypePDF.Paginated() {
		t.Error("pdf should be paginated")
	}
	if ContentTypeText.Paginated() {
		t.Error("text should not be paginated")
	}
}

func TestDetectMIMEType(t *testing.T) {
	if got := DetectMIMEType("text/plain", "x.pdf"); got != "text/plain" {
		t.Errorf("declared type should win, got %s", got)
	}
	if got := DetectMIMEType("", "report.pdf"); got != "application/pdf" {
		t.Errorf("expected application/pdf from extension, got %s", got)
	}
	if got := DetectMIMEType("application/octet-stream", "blob"); got != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %s", got)
	}
}
