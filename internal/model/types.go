// Package model defines shared data structures.
package model

import "time"

// User is the profile returned by the auth endpoints.
type User struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is the persisted authentication state.
type Session struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
}

// TranscriptFile is a transcript selected for upload.
type TranscriptFile struct {
	Name    string
	Content []byte
}

// GainPoint is a single sample of a gain series.
type GainPoint struct {
	Position int     `json:"position"`
	Gain     float64 `json:"gain"`
}

// GainFile holds the source text and gain series for one file.
type GainFile struct {
	Text   string      `json:"text"`
	Points []GainPoint `json:"data"`
}

// GainData maps filenames to gain series, keeping the server's key order.
type GainData struct {
	Files  []string
	ByName map[string]GainFile
}

// Len returns the number of files.
func (g GainData) Len() int {
	return len(g.Files)
}

// First returns the first filename in server order.
func (g GainData) First() (string, bool) {
	if len(g.Files) == 0 {
		return "", false
	}
	return g.Files[0], true
}

// Get returns the gain file for name.
func (g GainData) Get(name string) (GainFile, bool) {
	f, ok := g.ByName[name]
	return f, ok
}

// Topic is a labeled segment boundary.
type Topic struct {
	Start string `json:"start" yaml:"start"`
	Title string `json:"title" yaml:"title"`
}

// Upload statuses recorded in history.
const (
	UploadSucceeded = "ok"
	UploadFailed    = "failed"
)

// UploadRecord is a row of the local upload history.
type UploadRecord struct {
	ID         string
	Filename   string
	Size       int
	UploadedAt time.Time
	Status     string
	Error      string
}
