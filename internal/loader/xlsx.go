package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// columnDelimiter joins cell values within a row.
const columnDelimiter = " | "

func loadXLSX(data []byte, meta *Metadata) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if props, err := f.GetDocProps(); err == nil && props != nil {
		meta.Title = strings.TrimSpace(props.Title)
		meta.Author = strings.TrimSpace(props.Creator)
	}

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := joinCells(row)
			if line == "" {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## Sheet: %s\n", sheet)
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}

func joinCells(cells []string) string {
	trimmed := make([]string, 0, len(cells))
	empty := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c != "" {
			empty = false
		}
		trimmed = append(trimmed, c)
	}
	if empty {
		return ""
	}
	return strings.TrimRight(strings.Join(trimmed, columnDelimiter), " |")
}
