package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// PageBreak separates extracted pages in the output text. The chunker
// counts these markers to recover page numbers, so they must survive
// all the way into chunk content.
const PageBreak = "\f"

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Metadata is produced once per load and is not mutated afterwards.
type Metadata struct {
	Filename    string
	FileType    string
	FileSize    int64
	PageCount   int
	WordCount   int
	Title       string
	Author      string
	Diagnostics map[string]string
}

// Loader converts raw file bytes into plain text plus structural metadata.
// PDF extraction runs a tiered fallback: embedded text layer, then
// layout-aware extraction, then OCR as the last resort.
type Loader struct {
	ocrEnabled   bool
	minTextChars int

	textLayer pdfTier
	layout    pdfTier
	ocr       pdfTier
}

func New(ocrEnabled bool, minTextChars int) *Loader {
	return &Loader{
		ocrEnabled:   ocrEnabled,
		minTextChars: minTextChars,
		textLayer:    extractTextLayer,
		layout:       detectPdftotext(),
		ocr:          detectOCR(),
	}
}

func (l *Loader) Load(ctx context.Context, data []byte, filename string) (string, *Metadata, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	meta := &Metadata{
		Filename:    filename,
		FileType:    ext,
		FileSize:    int64(len(data)),
		Diagnostics: map[string]string{},
	}

	var text string
	var err error

	switch ext {
	case "pdf":
		text, err = l.loadPDF(ctx, data, meta)
	case "docx":
		text, err = loadDOCX(data, meta)
	case "xlsx":
		text, err = loadXLSX(data, meta)
	case "pptx":
		text, err = loadPPTX(data, meta)
	case "csv":
		text, err = loadCSV(data, meta)
	default:
		return "", nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", ext, err)
	}

	meta.WordCount = len(strings.Fields(text))
	return text, meta, nil
}
