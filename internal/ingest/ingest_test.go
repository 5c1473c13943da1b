package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "one  two\n\nthree\tfour", "one two three four"},
		{"trims", "  padded  ", "padded"},
		{"drops non-printables", "café — bar\x00", "caf  bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		want    string
		wantErr error
	}{
		{"utf8 text", "notes.txt", []byte("Go is fun.\n\nIt compiles fast."), "Go is fun. It compiles fast.", nil},
		{"markdown", "README.MD", []byte("# Title\nBody."), "# Title Body.", nil},
		{"latin1 fallback", "old.txt", []byte{'n', 'a', 0xEF, 'v', 'e'}, "nave", nil},
		{"pptx unsupported", "slides.pptx", []byte("PK"), "", ErrUnsupportedType},
		{"no extension", "noext", []byte("x"), "", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.file, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func pdfDocument(t *testing.T, pages ...string) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Cell(0, 10, text)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func docxDocument(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	data := pdfDocument(t, "Cells store energy.", "Leaves hold chlorophyll.")

	got, err := ExtractText("biology.pdf", data)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"Cells store energy.", "Leaves hold chlorophyll."} {
		if !strings.Contains(got, want) {
			t.Errorf("extracted text %q does not contain %q", got, want)
		}
	}
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("extracted text was not cleaned: %q", got)
	}
}

func TestExtractDOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>First paragraph</w:t></w:r><w:r><w:t xml:space="preserve"> continues.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph.</w:t></w:r></w:p>` +
		`<w:p><w:pPr><w:pStyle w:val="Normal"/></w:pPr></w:p>`

	got, err := ExtractText("notes.DOCX", docxDocument(t, body))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if want := "First paragraph continues. Second paragraph."; got != want {
		t.Errorf("ExtractText() = %q, want %q", got, want)
	}
}

func TestExtractDocumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"corrupt pdf", "paper.pdf", []byte("%PDF-1.4"), nil},
		{"docx that is not a zip", "paper.docx", []byte("plain text"), nil},
		{"docx without body", "empty.docx", docxDocument(t, ""), ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractText(tt.file, tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, ErrUnsupportedType) {
				t.Errorf("supported type reported as unsupported: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
