// Package transcript loads transcript files selected for upload.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/gainview/internal/model"
)

// Validation errors.
var (
	ErrUnsupportedType = errors.New("unsupported transcript type")
	ErrEmpty           = errors.New("transcript is empty")
)

// Load reads the transcript at path.
func Load(path string) (model.TranscriptFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return model.TranscriptFile{}, fmt.Errorf("transcript path is empty")
	}
	name := filepath.Base(path)
	if !Accepted(name) {
		return model.TranscriptFile{}, fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedType, name, strings.Join(AcceptedExtensions, ", "))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return model.TranscriptFile{}, err
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return model.TranscriptFile{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return model.TranscriptFile{Name: name, Content: content}, nil
}
