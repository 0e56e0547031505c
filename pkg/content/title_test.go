package content

import (
	"errors"
	"testing"
)

func TestExtractTitle_TitleTag(t *testing.T) {
	html := `<html><head><title>Interop at Scale for Regional Hospital Systems</title></head>
<body><article><h1>Interop at Scale for Regional Hospital Systems</h1>
<p>Today we talk about HL7 FHIR adoption across regional hospital systems and what it means for data teams.</p>
</article></body></html>`

	got, err := ExtractTitle(html)
	if err != nil {
		t.Fatalf("ExtractTitle returned error: %v", err)
	}
	if got != "Interop at Scale for Regional Hospital Systems" {
		t.Errorf("ExtractTitle = %q", got)
	}
}

func TestExtractTitle_Empty(t *testing.T) {
	_, err := ExtractTitle("   ")
	if !errors.Is(err, errTitleNotFound) {
		t.Fatalf("expected errTitleNotFound, got %v", err)
	}
}
