package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/japaniel/readerer/pkg/readerer"
)

// layout wraps segments into lines of at most width cells. Words are never
// split; newlines inside whitespace segments start new lines. render styles
// the segment with the given index. It returns the lines and the line holding
// segment cursor (or -1).
func layout(segs []readerer.Segment, width, cursor int, render func(i int, s readerer.Segment) string) ([]string, int) {
	if width < 1 {
		width = 1
	}
	var (
		lines      []string
		line       strings.Builder
		lineWidth  int
		cursorLine = -1
	)
	breakLine := func() {
		lines = append(lines, strings.TrimRight(line.String(), " "))
		line.Reset()
		lineWidth = 0
	}

	for i, seg := range segs {
		if seg.Kind == readerer.KindSpace {
			breaks := strings.Count(seg.Text, "\n")
			if breaks > 0 {
				for n := 0; n < breaks; n++ {
					breakLine()
				}
				continue
			}
			w := lipgloss.Width(seg.Text)
			if lineWidth+w > width {
				breakLine()
				continue
			}
			if lineWidth > 0 {
				line.WriteString(seg.Text)
				lineWidth += w
			}
			continue
		}

		w := lipgloss.Width(seg.Text)
		if lineWidth > 0 && lineWidth+w > width {
			breakLine()
		}
		if i == cursor {
			cursorLine = len(lines)
		}
		line.WriteString(render(i, seg))
		lineWidth += w
	}
	if line.Len() > 0 || len(lines) == 0 {
		breakLine()
	}
	return lines, cursorLine
}

// clickable returns the indexes of the segments a reader can select.
func clickable(segs []readerer.Segment) []int {
	var out []int
	for i, s := range segs {
		if s.Clickable() && s.CleanWord() != "" {
			out = append(out, i)
		}
	}
	return out
}
