package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/gainview/internal/chart"
	"github.com/verte-zerg/gainview/internal/model"
)

func sampleGain() model.GainData {
	return model.GainData{
		Files: []string{"b.txt", "a.txt"},
		ByName: map[string]model.GainFile{
			"a.txt": {Text: "alpha", Points: []model.GainPoint{{Position: 0, Gain: 0.3}}},
			"b.txt": {Text: strings.Repeat("x", 250), Points: []model.GainPoint{{Position: 0, Gain: 0.1}, {Position: 1, Gain: 0.2}}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestGainTableKeepsOrderAndPreview(t *testing.T) {
	var buf bytes.Buffer
	if err := Gain(&buf, sampleGain(), FormatTable, chart.Options{Width: 10, Height: 3}); err != nil {
		t.Fatalf("Gain failed: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "File: b.txt") > strings.Index(out, "File: a.txt") {
		t.Fatalf("expected server order, got:\n%s", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 200)+"...") || strings.Contains(out, strings.Repeat("x", 201)) {
		t.Fatalf("expected 200 character preview")
	}
}

func TestGainJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Gain(&buf, sampleGain(), FormatJSON, chart.Options{}); err != nil {
		t.Fatalf("Gain failed: %v", err)
	}
	var decoded []gainEntry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 || decoded[0].File != "b.txt" || len(decoded[0].Points) != 2 {
		t.Fatalf("unexpected entries %+v", decoded)
	}
}

func TestTopicsFormats(t *testing.T) {
	topics := []model.Topic{{Start: "00:01:00", Title: "Intro"}, {Start: "00:05:00", Title: "Body, part 2"}}

	var table bytes.Buffer
	if err := Topics(&table, topics, FormatTable); err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "Start     Title" || lines[2] != "00:05:00  Body, part 2" {
		t.Fatalf("unexpected table %q", lines)
	}

	var out bytes.Buffer
	if err := Topics(&out, topics, FormatYAML); err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	var decoded []model.Topic
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(decoded) != 2 || decoded[1] != topics[1] {
		t.Fatalf("unexpected yaml topics %+v", decoded)
	}

	var empty bytes.Buffer
	if err := Topics(&empty, nil, FormatTable); err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	if strings.TrimSpace(empty.String()) != chart.NoTopicsMessage {
		t.Fatalf("unexpected empty output %q", empty.String())
	}
}

func TestProgress(t *testing.T) {
	pct := 73
	var buf bytes.Buffer
	if err := Progress(&buf, &pct, FormatTable); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if buf.String() != "Completion: 73%\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if FormatPercent(nil) != NotAvailable {
		t.Fatalf("expected N/A")
	}
	buf.Reset()
	if err := Progress(&buf, nil, FormatJSON); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "{\n  \"progress\": null\n}" {
		t.Fatalf("unexpected json %q", buf.String())
	}
}

func TestHistoryTable(t *testing.T) {
	records := []model.UploadRecord{{
		ID:         "id-1",
		Filename:   "talk.csv",
		Size:       1200,
		UploadedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:     model.UploadFailed,
		Error:      "An error occurred: Please try again.",
	}}
	var buf bytes.Buffer
	if err := History(&buf, records, FormatTable); err != nil {
		t.Fatalf("History failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "talk.csv") || !strings.Contains(out, "failed") || !strings.Contains(out, "1200") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}
