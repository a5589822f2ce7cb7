package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// exportPrefix and exportTimeLayout build names like TextSword_20250102_150405.txt
const (
	exportPrefix     = "TextSword_"
	exportTimeLayout = "20060102_150405"
)

// EncodingWarning means an imported file was readable but does not look like
// UTF-8 text. The import is abandoned and the current input kept.
type EncodingWarning struct {
	Path   string
	Reason string
}

func (w *EncodingWarning) Error() string {
	return fmt.Sprintf("%s: %s", filepath.Base(w.Path), w.Reason)
}

// ReadImportFile reads path as text for use as new input.
// HTML files are reduced to their text content when stripHTML is set.
func ReadImportFile(path string, stripHTML bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	text, err := decodeImportBytes(path, data)
	if err != nil {
		return "", err
	}

	if stripHTML && isHTMLFile(path) {
		text = htmlToText(text)
	}

	return text, nil
}

// decodeImportBytes honours a byte order mark and checks the result is
// well-formed text inside the Basic Multilingual Plane
func decodeImportBytes(path string, data []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}

	if !utf8.Valid(decoded) {
		_, name, _ := charset.DetermineEncoding(data, "text/plain")
		return "", &EncodingWarning{
			Path:   path,
			Reason: fmt.Sprintf("file may not be UTF-8 encoded (looks like %s)", name),
		}
	}

	text := string(decoded)
	for _, r := range text {
		if r > 0xFFFF {
			return "", &EncodingWarning{
				Path:   path,
				Reason: "file may not be UTF-8 encoded",
			}
		}
	}

	return text, nil
}

func isHTMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// htmlToText returns the visible text of an HTML document
func htmlToText(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return input
	}

	doc.Find("script, style").Remove()
	return doc.Text()
}

// ExportFileName returns the export file name for the given local time
func ExportFileName(t time.Time) string {
	return exportPrefix + t.Format(exportTimeLayout) + ".txt"
}

// WriteExportFile writes text into dir under a timestamped name and returns the full path
func WriteExportFile(dir, text string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(now))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
