package chart

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/gainview/internal/model"
)

func TestTopicLines(t *testing.T) {
	lines := TopicLines([]model.Topic{{Start: "00:01:00", Title: "Intro"}, {Start: "00:05:00", Title: "A very long title"}}, 20)
	if lines[0] != "[00:01:00] - Intro" {
		t.Fatalf("unexpected line %q", lines[0])
	}
	if lines[1] != "[00:05:00] - A very…" {
		t.Fatalf("unexpected truncated line %q", lines[1])
	}
	if empty := TopicLines(nil, 0); len(empty) != 1 || empty[0] != NoTopicsMessage {
		t.Fatalf("unexpected empty rendering %v", empty)
	}
}

func TestFormatTableAlignsColumns(t *testing.T) {
	lines := FormatTable([]string{"File", "Points", "Max"}, [][]string{
		{"a.txt", "2", "0.20"},
		{"会議.csv", "10", "1.50"},
	}, map[int]bool{1: true, 2: true})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "File      Points   Max" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "a.txt          2  0.20" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if lines[2] != "会議.csv      10  1.50" {
		t.Fatalf("unexpected wide row %q", lines[2])
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("hello\n  world", 200); got != "hello world" {
		t.Fatalf("unexpected preview %q", got)
	}
	if got := Preview("abcdef", 3); got != "abc..." {
		t.Fatalf("unexpected truncated preview %q", got)
	}
}

func TestExportPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "gain.png")
	points := []model.GainPoint{{Position: 0, Gain: 0.1}, {Position: 1, Gain: 0.2}}
	if err := ExportPNG(path, "a.txt", points, 320, 200); err != nil {
		t.Fatalf("ExportPNG failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatalf("expected PNG signature")
	}
	if err := WritePNG(&bytes.Buffer{}, "", nil, 0, 0); !errors.Is(err, ErrNoPoints) {
		t.Fatalf("expected ErrNoPoints, got %v", err)
	}
}
