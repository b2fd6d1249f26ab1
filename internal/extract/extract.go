// Package extract pulls plain text out of PDF, EPUB, FB2 and TXT documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the input formats Extract understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".epub", ".fb2", ".txt"}
}

// Extract reads the file at path and returns its text content, dispatching
// on the file extension.
func Extract(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return FromPDF(path)
	case ".epub":
		return FromEPUB(path)
	case ".fb2":
		return FromFB2(path)
	case ".txt":
		return FromTXT(path)
	default:
		return "", fmt.Errorf("unsupported file format %q, supported: %s", ext, strings.Join(SupportedExtensions(), ", "))
	}
}

// FromTXT reads a plain-text file.
func FromTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read txt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
