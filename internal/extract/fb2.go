package extract

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// FromFB2 extracts text from a FictionBook 2 document. Only <body> content
// is read; description metadata and binary attachments are skipped.
func FromFB2(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open fb2: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.Strict = false

	var sb strings.Builder
	bodyDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse fb2: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "body":
				bodyDepth++
			case "p", "v", "subtitle", "title", "empty-line":
				if bodyDepth > 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Local == "body" && bodyDepth > 0 {
				bodyDepth--
			}
		case xml.CharData:
			if bodyDepth > 0 {
				sb.Write(t)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", path)
	}
	return text, nil
}
