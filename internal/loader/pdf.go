package loader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfTier is one extraction strategy. It returns the extracted text and,
// when the strategy knows it, a page count. Tiers are attempted in a fixed
// order and a failing tier never aborts the load.
type pdfTier func(ctx context.Context, data []byte) (string, int, error)

const (
	methodTextLayer = "text_layer"
	methodLayout    = "layout"
	methodOCR       = "ocr"
)

func (l *Loader) loadPDF(ctx context.Context, data []byte, meta *Metadata) (string, error) {
	var attempted []string
	best := ""
	method := methodTextLayer
	ocrApplied := false

	// Tier 1: embedded text layer. Always attempted, always contributes
	// the page count.
	attempted = append(attempted, methodTextLayer)
	text, pages, err := l.textLayer(ctx, data)
	if err != nil {
		slog.Warn("pdf text layer extraction failed", "file", meta.Filename, "error", err)
	} else {
		best = text
	}
	if pages > 0 {
		meta.PageCount = pages
	}

	// Tier 2: layout-aware extraction, kept only when it strictly
	// increases yield.
	if yield(best) < l.minTextChars && l.ocrEnabled && l.layout != nil {
		attempted = append(attempted, methodLayout)
		if t, p, err := l.layout(ctx, data); err != nil {
			slog.Warn("pdf layout extraction failed", "file", meta.Filename, "error", err)
		} else if yield(t) > yield(best) {
			best = t
			method = methodLayout
			if meta.PageCount == 0 && p > 0 {
				meta.PageCount = p
			}
		}
	}

	// Tier 3: OCR. The last resort, so its result is returned
	// unconditionally once reached.
	if yield(best) < l.minTextChars && l.ocrEnabled && l.ocr != nil {
		attempted = append(attempted, methodOCR)
		if t, p, err := l.ocr(ctx, data); err != nil {
			slog.Warn("pdf ocr extraction failed", "file", meta.Filename, "error", err)
		} else {
			best = t
			method = methodOCR
			ocrApplied = true
			if meta.PageCount == 0 && p > 0 {
				meta.PageCount = p
			}
		}
	}

	meta.Diagnostics["pdf_extraction_method"] = method
	meta.Diagnostics["pdf_ocr_applied"] = strconv.FormatBool(ocrApplied)
	meta.Diagnostics["pdf_tiers_attempted"] = strings.Join(attempted, ",")

	// Even an empty result is returned here. The pipeline rejects blank
	// documents with a dedicated error at the orchestration level.
	return best, nil
}

func yield(text string) int {
	return len(strings.TrimSpace(text))
}

func extractTextLayer(_ context.Context, data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf page has no readable text layer", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, PageBreak), total, nil
}

// detectPdftotext returns the layout-aware tier when the poppler binary is
// installed, nil otherwise.
func detectPdftotext() pdfTier {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil
	}
	return extractWithPdftotext
}

func extractWithPdftotext(ctx context.Context, data []byte) (string, int, error) {
	path, cleanup, err := writeTempPDF(data)
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	// pdftotext inserts form feeds between pages on its own, which is
	// exactly the page marker downstream expects.
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w", err)
	}
	return out.String(), 0, nil
}

// detectOCR returns the OCR tier when both pdftoppm and tesseract are
// installed, nil otherwise.
func detectOCR() pdfTier {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return nil
	}
	if _, err := exec.LookPath("tesseract"); err != nil {
		return nil
	}
	return extractWithOCR
}

func extractWithOCR(ctx context.Context, data []byte) (string, int, error) {
	dir, err := os.MkdirTemp("", "docpipe-ocr-")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", 0, err
	}

	convert := exec.CommandContext(ctx, "pdftoppm", "-r", "200", "-png", pdfPath, filepath.Join(dir, "page"))
	if err := convert.Run(); err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w", err)
	}

	images, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil || len(images) == 0 {
		return "", 0, fmt.Errorf("no pages rasterized")
	}
	sort.Strings(images)

	pages := make([]string, 0, len(images))
	for _, img := range images {
		ocr := exec.CommandContext(ctx, "tesseract", img, "stdout", "--oem", "3", "--psm", "3")
		var out bytes.Buffer
		ocr.Stdout = &out
		if err := ocr.Run(); err != nil {
			slog.Warn("tesseract failed on page image", "image", img, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(out.String()))
	}
	return strings.Join(pages, PageBreak), len(images), nil
}

func writeTempPDF(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "docpipe-*.pdf")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
