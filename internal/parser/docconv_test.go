package parser

import (
	"strings"
	"testing"
)

func TestDocconvExtractor_HTML(t *testing.T) {
	html := "<html><body><h1>Quarterly</h1><p>Revenue grew.</p></body></html>"

	chunks, err := extractAll(t, &DocconvExtractor{}, Input{
		Body:     strings.NewReader(html),
		Filename: "report.html",
		MIMEType: "text/html",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks from html")
	}

	var all []string
	for _, c := range chunks {
		if c.Source != "report.html" {
			t.Errorf("expected source report.html, got %s", c.Source)
		}
		all = append(all, c.Text)
	}
	joined := strings.Join(all, " ")
	if !strings.Contains(joined, "Quarterly") || !strings.Contains(joined, "Revenue grew.") {
		t.Errorf("unexpected extracted text: %q", joined)
	}
}
