package analysis

import (
	"fmt"

	"github.com/verte-zerg/gainview/internal/model"
)

// State is the position of the workflow in the upload and retrieval sequence.
type State int

const (
	NoFile State = iota
	FileSelected
	Uploading
	AnalysisLoading
	AnalysisReady
)

func (s State) String() string {
	switch s {
	case NoFile:
		return "no-file"
	case FileSelected:
		return "file-selected"
	case Uploading:
		return "uploading"
	case AnalysisLoading:
		return "analysis-loading"
	case AnalysisReady:
		return "analysis-ready"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the workflow state for rendering.
type Snapshot struct {
	State      State
	Generation uint64
	File       string
	FileSize   int
	ActiveFile string
	Gain       model.GainData
	Topics     []model.Topic
	Progress   *int
	ShowGraph  bool
	ShowTopics bool
	Err        error
}

// Loading reports whether a request is outstanding for the current generation.
func (s Snapshot) Loading() bool {
	return s.State == Uploading || s.State == AnalysisLoading
}

// Ready reports whether the analysis views can be rendered.
func (s Snapshot) Ready() bool {
	return s.State == AnalysisReady
}

// ActiveGain returns the gain series of the active file.
func (s Snapshot) ActiveGain() (model.GainFile, bool) {
	if s.ActiveFile == "" {
		return model.GainFile{}, false
	}
	return s.Gain.Get(s.ActiveFile)
}

// User-facing workflow messages.
const (
	NoFileMessage   = "Please select a file first!"
	UploadedMessage = "Transcript uploaded successfully!"
)

// AnalyzedMessage is shown once an uploaded file has been analyzed.
func AnalyzedMessage(name string) string {
	return fmt.Sprintf("Successfully analyzed %q!", name)
}
