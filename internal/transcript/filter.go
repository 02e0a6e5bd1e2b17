// Package transcript loads transcript files selected for upload.
package transcript

import (
	"path/filepath"
	"strings"
)

// AcceptedExtensions lists the transcript formats the service ingests.
var AcceptedExtensions = []string{".json", ".csv"}

// Accepted reports whether name has an accepted extension.
func Accepted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}
