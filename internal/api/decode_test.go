package api

import (
	"strings"
	"testing"

	"github.com/verte-zerg/gainview/internal/model"
)

func TestParseTopics(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []model.Topic
	}{
		{
			name: "header discarded",
			in:   "start,title\n00:01:00,Intro\n00:05:00,Body",
			want: []model.Topic{{Start: "00:01:00", Title: "Intro"}, {Start: "00:05:00", Title: "Body"}},
		},
		{
			name: "crlf and padding",
			in:   "start,title\r\n 00:01:00 , Intro \r\n\r\n",
			want: []model.Topic{{Start: "00:01:00", Title: "Intro"}},
		},
		{
			name: "title with comma",
			in:   "start,title\n00:02:00,Cats, dogs",
			want: []model.Topic{{Start: "00:02:00", Title: "Cats, dogs"}},
		},
		{
			name: "missing title",
			in:   "start,title\n00:03:00",
			want: []model.Topic{{Start: "00:03:00"}},
		},
		{
			name: "header only",
			in:   "start,title\n",
			want: []model.Topic{},
		},
		{
			name: "empty",
			in:   "",
			want: []model.Topic{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTopics(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d topics, got %+v", len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("topic %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestProgressPercentRounds(t *testing.T) {
	tests := map[float64]int{
		0:     0,
		0.734: 73,
		0.736: 74,
		0.5:   50,
		1:     100,
	}
	for in, want := range tests {
		if got := ProgressPercent(in); got != want {
			t.Fatalf("ProgressPercent(%v): expected %d, got %d", in, want, got)
		}
	}
}

func TestDecodeGainDataNullAndErrors(t *testing.T) {
	data, err := DecodeGainData(strings.NewReader("null"))
	if err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if data.Len() != 0 {
		t.Fatalf("expected empty mapping")
	}
	empty, err := DecodeGainData(strings.NewReader("{}"))
	if err != nil || empty.Len() != 0 {
		t.Fatalf("expected empty mapping, got %+v (%v)", empty, err)
	}
	if _, err := DecodeGainData(strings.NewReader("[1,2]")); err == nil {
		t.Fatalf("expected error for array payload")
	}
	if _, err := DecodeGainData(strings.NewReader(`{"a":{"data":"nope"}}`)); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
