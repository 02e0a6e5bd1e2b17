package api

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/gainview/internal/model"
)

// DecodeGainData decodes a JSON object of filename -> gain file, keeping key order.
// A JSON null decodes to an empty mapping.
func DecodeGainData(r io.Reader) (model.GainData, error) {
	data := model.GainData{ByName: map[string]model.GainFile{}}
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return model.GainData{}, err
	}
	if tok == nil {
		return data, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return model.GainData{}, fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return model.GainData{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return model.GainData{}, fmt.Errorf("unexpected key %v", keyTok)
		}
		var file model.GainFile
		if err := dec.Decode(&file); err != nil {
			return model.GainData{}, fmt.Errorf("file %q: %w", key, err)
		}
		if _, seen := data.ByName[key]; !seen {
			data.Files = append(data.Files, key)
		}
		data.ByName[key] = file
	}
	if _, err := dec.Token(); err != nil {
		return model.GainData{}, err
	}
	return data, nil
}

// ParseTopics parses the titles table: the first line is a header, every
// other non-blank line is "timestamp,title". Only the first comma separates
// the fields, so titles may contain commas.
func ParseTopics(text string) []model.Topic {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= 1 {
		return []model.Topic{}
	}
	topics := make([]model.Topic, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		start, title, _ := strings.Cut(line, ",")
		topics = append(topics, model.Topic{
			Start: strings.TrimSpace(start),
			Title: strings.TrimSpace(title),
		})
	}
	return topics
}

// ProgressPercent converts a completion fraction to a rounded percentage.
func ProgressPercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}
