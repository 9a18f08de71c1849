package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EPUB is a zip container. container.xml names the OPF package document,
// whose spine lists the reading order of the content chapters.

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func extractEPUB(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newError(KindCorrupt, "failed to open EPUB container", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	containerData, err := readZipFile(files, "META-INF/container.xml")
	if err != nil {
		return "", newError(KindCorrupt, "missing META-INF/container.xml", err)
	}

	var container epubContainer
	if err := xml.Unmarshal(containerData, &container); err != nil {
		return "", newError(KindCorrupt, "invalid container.xml", err)
	}
	if len(container.Rootfiles) == 0 {
		return "", newError(KindCorrupt, "container.xml lists no rootfile", nil)
	}

	opfPath := container.Rootfiles[0].FullPath
	opfData, err := readZipFile(files, opfPath)
	if err != nil {
		return "", newError(KindCorrupt, "missing OPF package document", err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return "", newError(KindCorrupt, "invalid OPF package document", err)
	}

	hrefByID := make(map[string]string, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		hrefByID[item.ID] = item.Href
	}

	opfDir := path.Dir(opfPath)
	var sb strings.Builder
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := hrefByID[ref.IDRef]
		if !ok {
			return "", newError(KindCorrupt,
				fmt.Sprintf("spine references unknown manifest item %q", ref.IDRef), nil)
		}

		chapterPath := href
		if opfDir != "." {
			chapterPath = path.Join(opfDir, href)
		}

		chapterData, err := readZipFile(files, chapterPath)
		if err != nil {
			return "", newError(KindCorrupt,
				fmt.Sprintf("missing chapter %q", chapterPath), err)
		}

		text, err := stripMarkup(chapterData)
		if err != nil {
			return "", newError(KindCorrupt,
				fmt.Sprintf("failed to parse chapter %q", chapterPath), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return normalizeWhitespace(sb.String()), nil
}

func readZipFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("file %q not in archive", name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// stripMarkup renders an XHTML chapter as plain text, dropping scripts and
// styles and keeping block boundaries as newlines.
func stripMarkup(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Remove()

	var sb strings.Builder
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, td, blockquote, div").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Filter("p, div, li, blockquote").Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	})

	if sb.Len() == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return sb.String(), nil
}
