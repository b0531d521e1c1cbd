package xmlenc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/fluxorio/streamio/pkg/bom"
)

func utf16be(t *testing.T, s string) []byte {
	t.Helper()
	out, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("utf16be encode: %v", err)
	}
	return out
}

func TestReader_UTF8BOMParsesAsXML(t *testing.T) {
	doc := `<?xml version="1.0"?><X/>`
	data := append(bom.UTF8.Bytes(), []byte(doc)...)

	r, err := NewReader(bytes.NewReader(data), Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-8" {
		t.Fatalf("encoding = %q, want UTF-8", r.Encoding())
	}
	if r.Stage() != StageBOM {
		t.Fatalf("stage = %v, want BOM", r.Stage())
	}
	if r.BOMLength() != 3 {
		t.Fatalf("BOMLength = %d, want 3", r.BOMLength())
	}

	var root struct {
		XMLName xml.Name
	}
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		t.Fatalf("xml decode: %v", err)
	}
	if root.XMLName.Local != "X" {
		t.Fatalf("root = %q, want X", root.XMLName.Local)
	}
}

func TestReader_UTF16BEBOMWithMatchingProlog(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-16BE"?><X/>`
	data := append(bom.UTF16BE.Bytes(), utf16be(t, doc)...)

	r, err := NewReader(bytes.NewReader(data), Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-16BE" {
		t.Fatalf("encoding = %q, want UTF-16BE", r.Encoding())
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(got) != doc {
		t.Fatalf("decoded = %q, want %q", got, doc)
	}
}

func TestReader_TransportAgreesWithBOM(t *testing.T) {
	data := append(bom.UTF16BE.Bytes(), utf16be(t, `<X/>`)...)
	r, err := NewReader(bytes.NewReader(data), Config{
		ContentType: "application/xml;charset=UTF-16BE",
	})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-16BE" {
		t.Fatalf("encoding = %q, want UTF-16BE", r.Encoding())
	}
}

func TestReader_PrologConflictsWithBOM(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-16LE"?><X/>`
	data := append(bom.UTF16BE.Bytes(), utf16be(t, doc)...)

	_, err := NewReader(bytes.NewReader(data), Config{
		ContentType: "application/xml;charset=UTF-16BE",
	})
	var illegal *IllegalEncodingError
	if !errors.As(err, &illegal) {
		t.Fatalf("err=%v, want IllegalEncodingError", err)
	}
	if illegal.BOM != "UTF-16BE" || illegal.Declared != "UTF-16LE" {
		t.Fatalf("error names %q vs %q, want UTF-16BE vs UTF-16LE", illegal.BOM, illegal.Declared)
	}

	// Lenient mode resolves in favor of the BOM / transport value.
	r, err := NewReader(bytes.NewReader(data), Config{
		ContentType: "application/xml;charset=UTF-16BE",
		Lenient:     true,
	})
	if err != nil {
		t.Fatalf("lenient NewReader: %v", err)
	}
	if r.Encoding() != "UTF-16BE" {
		t.Fatalf("lenient encoding = %q, want UTF-16BE", r.Encoding())
	}
}

func TestReader_TransportConflictsWithBOM(t *testing.T) {
	data := append(bom.UTF8.Bytes(), []byte(`<X/>`)...)
	_, err := NewReader(bytes.NewReader(data), Config{
		ContentType: "text/xml;charset=UTF-16LE",
	})
	var illegal *IllegalEncodingError
	if !errors.As(err, &illegal) {
		t.Fatalf("err=%v, want IllegalEncodingError", err)
	}
}

func TestReader_GenericFamilyAgreesWithBOM(t *testing.T) {
	data := append(bom.UTF16BE.Bytes(), utf16be(t, `<X/>`)...)
	r, err := NewReader(bytes.NewReader(data), Config{
		ContentType: "text/xml;charset=UTF-16",
	})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-16BE" {
		t.Fatalf("encoding = %q, want UTF-16BE", r.Encoding())
	}
}

func TestReader_DeclaredOnlyQuotingVariants(t *testing.T) {
	docs := []string{
		`<?xml version="1.0" encoding="ISO-8859-1"?><X/>`,
		`<?xml version='1.0' encoding='ISO-8859-1'?><X/>`,
		"<?xml\n\tversion = '1.0'\n\tencoding\t=\t'ISO-8859-1'\n?><X/>",
		`<?xml encoding="ISO-8859-1"?><X/>`,
	}
	for _, doc := range docs {
		r, err := NewReader(strings.NewReader(doc), Config{})
		if err != nil {
			t.Fatalf("NewReader(%q): %v", doc, err)
		}
		if r.Encoding() != "ISO-8859-1" {
			t.Fatalf("encoding = %q for %q, want ISO-8859-1", r.Encoding(), doc)
		}
		if r.Stage() != StageProlog {
			t.Fatalf("stage = %v for %q, want prolog", r.Stage(), doc)
		}
	}
}

func TestReader_UTF16WithoutBOMGuessedFromProlog(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-16BE"?><X/>`
	data := utf16be(t, doc) // no BOM: the 00 3C 00 3F pattern guides the scan

	r, err := NewReader(bytes.NewReader(data), Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-16BE" {
		t.Fatalf("encoding = %q, want UTF-16BE", r.Encoding())
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(got) != doc {
		t.Fatalf("decoded = %q, want %q", got, doc)
	}
}

func TestReader_InvalidDeclaredEncoding(t *testing.T) {
	doc := `<?xml version="1.0" encoding="NOT-A-CHARSET"?><X/>`
	_, err := NewReader(strings.NewReader(doc), Config{})
	var invalid *InvalidEncodingError
	if !errors.As(err, &invalid) {
		t.Fatalf("err=%v, want InvalidEncodingError", err)
	}
	if invalid.Encoding != "NOT-A-CHARSET" {
		t.Fatalf("error names %q, want NOT-A-CHARSET", invalid.Encoding)
	}
}

func TestReader_DefaultFallback(t *testing.T) {
	r, err := NewReader(strings.NewReader(`<X/>`), Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Encoding() != "UTF-8" || r.Stage() != StageDefault {
		t.Fatalf("got %q/%v, want UTF-8/default", r.Encoding(), r.Stage())
	}

	r, err = NewReader(strings.NewReader(`<X/>`), Config{DefaultEncoding: "ISO-8859-1"})
	if err != nil {
		t.Fatalf("NewReader with default: %v", err)
	}
	if r.Encoding() != "ISO-8859-1" {
		t.Fatalf("encoding = %q, want caller-supplied default", r.Encoding())
	}
}

func TestReader_ReplayIsExactForLargePayload(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><root>`)
	for i := 0; i < 4000; i++ {
		sb.WriteString("<item>value</item>")
	}
	sb.WriteString("</root>")
	doc := sb.String()
	data := append(bom.UTF8.Bytes(), []byte(doc)...)

	r, err := NewReader(bytes.NewReader(data), Config{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	// The caller-visible stream is the exact original content minus only
	// the byte order mark.
	if string(got) != doc {
		t.Fatalf("replayed %d bytes, want %d; content mismatch", len(got), len(doc))
	}
}

func TestParseContentType(t *testing.T) {
	cases := []struct {
		in      string
		mime    string
		charset string
	}{
		{"text/xml", "text/xml", ""},
		{"text/xml;charset=UTF-8", "text/xml", "UTF-8"},
		{`text/xml; charset="utf-16be"`, "text/xml", "UTF-16BE"},
		{"application/xml ; charset='UTF-16LE'", "application/xml", "UTF-16LE"},
		{"Text/XML; Charset = utf-8", "text/xml", "UTF-8"},
		{"", "", ""},
	}
	for _, c := range cases {
		mime, charset := parseContentType(c.in)
		if mime != c.mime || charset != c.charset {
			t.Fatalf("parseContentType(%q) = %q, %q; want %q, %q",
				c.in, mime, charset, c.mime, c.charset)
		}
	}
}
