// Package ingest extracts and normalises plain text from uploaded documents.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedType is returned for file types without an extractor.
var ErrUnsupportedType = errors.New("unsupported file type")

var (
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	nonPrintingRegex = regexp.MustCompile(`[^\x20-\x7E\n]`)
)

// SupportedTypes lists the extensions ExtractText accepts.
var SupportedTypes = []string{".txt", ".md", ".pdf", ".docx"}

// FileType returns the lower-cased extension of name.
func FileType(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ExtractText returns the cleaned text of a document. Text files that are
// not valid UTF-8 are decoded as Latin-1. PDF and DOCX documents that hold
// no extractable text yield ErrNoText.
func ExtractText(name string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := FileType(name); ext {
	case ".txt", ".md":
		text, err = decodeText(data)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", name, err)
		}
		return Clean(text), nil
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	text = Clean(text)
	if text == "" {
		return "", fmt.Errorf("extract %s: %w", name, ErrNoText)
	}
	return text, nil
}

func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Clean collapses whitespace runs to single spaces, drops characters outside
// printable ASCII and trims the result.
func Clean(text string) string {
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = nonPrintingRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
