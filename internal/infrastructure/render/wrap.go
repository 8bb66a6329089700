package render

import (
	"math"
	"strings"
)

const ellipsis = "..."

// Measurer reports the rendered size of a string. *gg.Context satisfies it.
type Measurer interface {
	MeasureString(s string) (w, h float64)
}

// Wrap splits text into at most maxLines lines no wider than maxWidth.
// Hard breaks come first, then words are packed greedily. A word wider than
// maxWidth gets a line of its own. The result always has at least one line.
func Wrap(text string, maxLines int, m Measurer, maxWidth float64) []string {
	if maxLines < 1 {
		maxLines = 1
	}

	var lines []string
	for _, segment := range strings.Split(text, "\n") {
		segment = strings.TrimRight(segment, "\r")
		words := strings.Fields(segment)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := words[0]
		for _, word := range words[1:] {
			candidate := line + " " + word
			if w, _ := m.MeasureString(candidate); w <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = word
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return []string{""}
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines[maxLines-1] += ellipsis
	}
	return lines
}

// CanvasHeight is the pixel height needed for lineCount lines, rounded up
// so the last line keeps room for descenders.
func CanvasHeight(lineCount, lineHeight int) int {
	return int(math.Ceil((float64(lineCount) + 0.5) * float64(lineHeight) / 2))
}
