// Package output renders analysis results for CLI commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/gainview/internal/chart"
	"github.com/verte-zerg/gainview/internal/model"
)

// Format selects how results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// PreviewLength is the number of characters of source text shown per file.
const PreviewLength = 200

// NotAvailable is printed when a value could not be fetched.
const NotAvailable = "N/A"

// ParseFormat validates a --output value.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table, json or yaml)", value)
	}
}

type gainPoint struct {
	Position int     `json:"position" yaml:"position"`
	Gain     float64 `json:"gain" yaml:"gain"`
}

type gainEntry struct {
	File   string      `json:"file" yaml:"file"`
	Text   string      `json:"text" yaml:"text"`
	Points []gainPoint `json:"data" yaml:"data"`
}

type progressEntry struct {
	Progress *int `json:"progress" yaml:"progress"`
}

type historyEntry struct {
	ID         string    `json:"id" yaml:"id"`
	File       string    `json:"file" yaml:"file"`
	Size       int       `json:"size" yaml:"size"`
	UploadedAt time.Time `json:"uploadedAt" yaml:"uploaded_at"`
	Status     string    `json:"status" yaml:"status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Gain writes every file of data in server order.
func Gain(w io.Writer, data model.GainData, format Format, plot chart.Options) error {
	if format != FormatTable {
		entries := make([]gainEntry, 0, data.Len())
		for _, name := range data.Files {
			file, _ := data.Get(name)
			points := make([]gainPoint, len(file.Points))
			for i, p := range file.Points {
				points[i] = gainPoint{Position: p.Position, Gain: p.Gain}
			}
			entries = append(entries, gainEntry{File: name, Text: file.Text, Points: points})
		}
		return encode(w, format, entries)
	}

	if data.Len() == 0 {
		_, err := fmt.Fprintln(w, "No analysis available.")
		return err
	}
	for i, name := range data.Files {
		file, _ := data.Get(name)
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "File: %s\n", name); err != nil {
			return err
		}
		if preview := chart.Preview(file.Text, PreviewLength); preview != "" {
			if _, err := fmt.Fprintln(w, preview); err != nil {
				return err
			}
		}
		if len(file.Points) == 0 {
			if _, err := fmt.Fprintln(w, "No gain data."); err != nil {
				return err
			}
			continue
		}
		if err := chart.Plot(w, file.Points, plot); err != nil {
			return err
		}
	}
	return nil
}

// Topics writes the topic table.
func Topics(w io.Writer, topics []model.Topic, format Format) error {
	if format != FormatTable {
		if topics == nil {
			topics = []model.Topic{}
		}
		return encode(w, format, topics)
	}
	if len(topics) == 0 {
		_, err := fmt.Fprintln(w, chart.NoTopicsMessage)
		return err
	}
	rows := make([][]string, 0, len(topics))
	for _, topic := range topics {
		rows = append(rows, []string{topic.Start, topic.Title})
	}
	return writeLines(w, chart.FormatTable([]string{"Start", "Title"}, rows, nil))
}

// Progress writes a completion percentage; nil is written as N/A.
func Progress(w io.Writer, pct *int, format Format) error {
	if format != FormatTable {
		return encode(w, format, progressEntry{Progress: pct})
	}
	_, err := fmt.Fprintf(w, "Completion: %s\n", FormatPercent(pct))
	return err
}

// History writes upload history records.
func History(w io.Writer, records []model.UploadRecord, format Format) error {
	if format != FormatTable {
		entries := make([]historyEntry, 0, len(records))
		for _, rec := range records {
			entries = append(entries, historyEntry{
				ID:         rec.ID,
				File:       rec.Filename,
				Size:       rec.Size,
				UploadedAt: rec.UploadedAt,
				Status:     rec.Status,
				Error:      rec.Error,
			})
		}
		return encode(w, format, entries)
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No uploads recorded.")
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.UploadedAt.Local().Format("2006-01-02 15:04"),
			rec.Filename,
			strconv.Itoa(rec.Size),
			rec.Status,
			rec.Error,
		})
	}
	return writeLines(w, chart.FormatTable([]string{"Uploaded", "File", "Bytes", "Status", "Error"}, rows, map[int]bool{2: true}))
}

// FormatPercent renders pct as "73%" or N/A.
func FormatPercent(pct *int) string {
	if pct == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%d%%", *pct)
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
