package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FromPDF extracts text from a PDF page by page. Pages without extractable
// text are skipped; a document with no text at all is rejected since it is
// most likely a scanned image.
func FromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("no text extracted from %s, it may be a scanned document", path)
	}
	return strings.Join(pages, "\n"), nil
}
