package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

type epubContainer struct {
	RootFiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// FromEPUB extracts text from an EPUB archive, walking the spine so that
// chapters come out in reading order.
func FromEPUB(file string) (string, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return "", fmt.Errorf("open epub: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := decodeZipXML(files, "META-INF/container.xml", &container); err != nil {
		return "", fmt.Errorf("epub container: %w", err)
	}
	if len(container.RootFiles) == 0 {
		return "", fmt.Errorf("epub container lists no rootfile")
	}

	opfPath := container.RootFiles[0].FullPath
	var pkg epubPackage
	if err := decodeZipXML(files, opfPath, &pkg); err != nil {
		return "", fmt.Errorf("epub package: %w", err)
	}

	hrefs := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if item.MediaType == "application/xhtml+xml" || strings.HasSuffix(item.Href, ".html") || strings.HasSuffix(item.Href, ".xhtml") {
			hrefs[item.ID] = item.Href
		}
	}

	opfDir := path.Dir(opfPath)
	var parts []string
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		name := href
		if opfDir != "." {
			name = path.Join(opfDir, href)
		}
		f, ok := files[name]
		if !ok {
			continue
		}
		text, err := readZipText(f)
		if err != nil {
			return "", fmt.Errorf("epub document %s: %w", name, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text extracted from %s", file)
	}
	return strings.Join(parts, "\n"), nil
}

func decodeZipXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return xml.NewDecoder(rc).Decode(v)
}

// readZipText strips markup from an XHTML chapter, inserting newlines at
// block-level element boundaries.
func readZipText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var sb strings.Builder
	skipDepth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "script", "style", "head":
				skipDepth++
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "script", "style", "head":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case xml.CharData:
			if skipDepth == 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
