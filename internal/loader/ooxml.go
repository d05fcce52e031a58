package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Office Open XML containers are plain zip archives. The subset we need
// (paragraph text, slide text, core document properties) is small enough
// to read with a streaming XML decoder instead of a full OOXML library.

func openZip(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

// coreProperties carries the docProps/core.xml fields we surface as
// document metadata.
type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

func readCoreProperties(zr *zip.Reader, meta *Metadata) {
	raw, err := readZipFile(zr, "docProps/core.xml")
	if err != nil {
		return
	}
	var props coreProperties
	if err := xml.Unmarshal(raw, &props); err != nil {
		return
	}
	meta.Title = strings.TrimSpace(props.Title)
	meta.Author = strings.TrimSpace(props.Creator)
}

func loadDOCX(data []byte, meta *Metadata) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	readCoreProperties(zr, meta)

	raw, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var para strings.Builder
	style := ""

	dec := xml.NewDecoder(bytes.NewReader(raw))
	inText := false
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
			case "t":
				inText = true
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				line := strings.TrimSpace(para.String())
				if line != "" {
					b.WriteString(headingPrefix(style))
					b.WriteString(line)
					b.WriteString("\n\n")
				}
				para.Reset()
				style = ""
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// headingPrefix maps Word heading styles onto the inline markers the
// chunker uses for section boundary detection.
func headingPrefix(style string) string {
	switch {
	case style == "Heading1" || style == "Heading2" || style == "Title":
		return "## "
	case strings.HasPrefix(style, "Heading"):
		return "### "
	default:
		return ""
	}
}

func loadPPTX(data []byte, meta *Metadata) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", err
	}
	readCoreProperties(zr, meta)

	var b strings.Builder
	slides := 0
	for n := 1; ; n++ {
		raw, err := readZipFile(zr, fmt.Sprintf("ppt/slides/slide%d.xml", n))
		if err != nil {
			break
		}
		slides++

		lines, err := slideText(raw)
		if err != nil {
			return "", err
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## Slide %d\n", n)
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	if slides == 0 {
		return "", fmt.Errorf("no slides found in archive")
	}
	meta.PageCount = slides
	return strings.TrimSpace(b.String()), nil
}

// slideText collects the contents of every a:t run on a slide.
func slideText(raw []byte) ([]string, error) {
	var lines []string
	var run strings.Builder

	dec := xml.NewDecoder(bytes.NewReader(raw))
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				run.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				if s := strings.TrimSpace(run.String()); s != "" {
					lines = append(lines, s)
				}
				run.Reset()
			}
		}
	}
	return lines, nil
}
