package chart

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/gainview/internal/model"
)

// NoTopicsMessage is shown in place of an empty topic list.
const NoTopicsMessage = "No topics found."

// TopicLines renders topics as "[start] - title" lines truncated to width.
// width <= 0 disables truncation.
func TopicLines(topics []model.Topic, width int) []string {
	if len(topics) == 0 {
		return []string{NoTopicsMessage}
	}
	lines := make([]string, 0, len(topics))
	for _, topic := range topics {
		line := fmt.Sprintf("[%s] - %s", topic.Start, topic.Title)
		if width > 0 {
			line = runewidth.Truncate(line, width, "…")
		}
		lines = append(lines, line)
	}
	return lines
}

// FormatTable aligns rows under headers. Columns in rightAlign are padded on the left.
func FormatTable(headers []string, rows [][]string, rightAlign map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlign))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlign))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlign map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		if rightAlign[i] {
			b.WriteString(runewidth.FillLeft(cell, widths[i]))
		} else {
			b.WriteString(runewidth.FillRight(cell, widths[i]))
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Preview returns the first limit runes of text on a single line.
func Preview(text string, limit int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if limit <= 0 || len(runes) <= limit {
		return flat
	}
	return string(runes[:limit]) + "..."
}
