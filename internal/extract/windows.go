package extract

// Window is an overlapping slice of document text, the unit of parallel
// entity extraction.
type Window struct {
	Index int
	Start int
	Text  string
}

// splitIntoWindows cuts text into fixed-size windows where adjacent
// windows share exactly `overlap` characters. Text that fits in one
// window is returned unchanged.
func splitIntoWindows(text string, size, overlap int) []Window {
	if size <= 0 {
		size = 8000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(text) <= size {
		return []Window{{Index: 0, Start: 0, Text: text}}
	}

	var windows []Window
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			windows = append(windows, Window{Index: len(windows), Start: start, Text: text[start:]})
			break
		}
		windows = append(windows, Window{Index: len(windows), Start: start, Text: text[start:end]})
	}
	return windows
}
