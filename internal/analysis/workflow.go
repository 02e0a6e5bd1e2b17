// Package analysis runs the upload and analysis retrieval workflow.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/gainview/internal/api"
	"github.com/verte-zerg/gainview/internal/model"
)

var (
	// ErrNoFile is returned by Upload when no file is selected.
	ErrNoFile = errors.New("no file selected")
	// ErrStale marks a response that arrived after the selection changed.
	ErrStale = errors.New("stale response discarded")
	// ErrNoAnalysis is returned when the service has no gain series.
	ErrNoAnalysis = errors.New("no analysis available")
)

const uploadFallbackMessage = "Please try again."

// Remote is the subset of the API client used by the workflow.
type Remote interface {
	Upload(ctx context.Context, file model.TranscriptFile) ([]byte, error)
	GainSeries(ctx context.Context) (model.GainData, error)
	Topics(ctx context.Context) ([]model.Topic, error)
	Progress(ctx context.Context) (float64, error)
}

// History records upload attempts.
type History interface {
	InsertUpload(ctx context.Context, rec model.UploadRecord) error
}

// Options configures a Workflow.
type Options struct {
	// History is optional.
	History History
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// ShowGraph and ShowTopics are the toggle values applied when an analysis becomes ready.
	ShowGraph  bool
	ShowTopics bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// UploadError is a rejected upload.
type UploadError struct {
	File string
	Err  error
	// Standalone marks an upload that was not followed by analysis.
	Standalone bool
}

func (e *UploadError) Error() string {
	msg := api.ServerMessage(e.Err)
	if e.Standalone {
		if msg == "" {
			msg = e.Err.Error()
		}
		return "Upload failed: " + msg
	}
	if msg == "" {
		msg = uploadFallbackMessage
	}
	return "An error occurred: " + msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Workflow owns the selected file and everything fetched for it.
type Workflow struct {
	remote Remote
	opts   Options
	log    *slog.Logger

	mu         sync.Mutex
	gen        uint64
	genCtx     context.Context
	cancelGen  context.CancelFunc
	state      State
	file       *model.TranscriptFile
	active     string
	gain       model.GainData
	topics     []model.Topic
	progress   *int
	showGraph  bool
	showTopics bool
	lastErr    error
}

// New returns a workflow in the NoFile state.
func New(remote Remote, opts Options) *Workflow {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Workflow{remote: remote, opts: opts, log: opts.Logger}
	w.genCtx, w.cancelGen = context.WithCancel(context.Background())
	return w
}

// Snapshot returns a copy of the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := Snapshot{
		State:      w.state,
		Generation: w.gen,
		ActiveFile: w.active,
		Gain:       w.gain,
		ShowGraph:  w.showGraph,
		ShowTopics: w.showTopics,
		Err:        w.lastErr,
	}
	if w.file != nil {
		snap.File = w.file.Name
		snap.FileSize = len(w.file.Content)
	}
	if w.topics != nil {
		snap.Topics = append([]model.Topic(nil), w.topics...)
	}
	if w.progress != nil {
		p := *w.progress
		snap.Progress = &p
	}
	return snap
}

// SelectFile makes file the selected file and discards all downstream state.
func (w *Workflow) SelectFile(file model.TranscriptFile) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advanceLocked()
	w.clearAnalysisLocked()
	w.file = &file
	w.state = FileSelected
	w.log.Debug("file selected", "file", file.Name, "size", len(file.Content), "generation", w.gen)
}

// Reset drops the selected file and all analysis state.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advanceLocked()
	w.clearAnalysisLocked()
	w.file = nil
	w.state = NoFile
}

// ToggleGraph flips the graph view when the analysis is ready.
func (w *Workflow) ToggleGraph() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == AnalysisReady {
		w.showGraph = !w.showGraph
	}
	return w.showGraph
}

// ToggleTopics flips the topic view when the analysis is ready.
func (w *Workflow) ToggleTopics() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == AnalysisReady {
		w.showTopics = !w.showTopics
	}
	return w.showTopics
}

// Upload sends the selected file and, on success, retrieves its analysis.
func (w *Workflow) Upload(ctx context.Context) error {
	w.mu.Lock()
	if w.file == nil {
		w.mu.Unlock()
		return ErrNoFile
	}
	file := *w.file
	gen := w.gen
	w.state = Uploading
	w.lastErr = nil
	reqCtx, done := w.requestContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	w.log.Info("uploading transcript", "file", file.Name, "size", len(file.Content))
	_, err := w.remote.Upload(reqCtx, file)
	w.recordUpload(ctx, file, err)

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		upErr := &UploadError{File: file.Name, Err: err}
		w.log.Error("upload failed", "file", file.Name, "error", err)
		w.clearAnalysisLocked()
		w.file = nil
		w.state = NoFile
		w.lastErr = upErr
		w.mu.Unlock()
		return upErr
	}
	w.state = AnalysisLoading
	w.mu.Unlock()

	return w.fetchGainSeries(reqCtx, gen, chainMode{afterUpload: true})
}

// FetchGainSeries retrieves the gain mapping and chains topics and progress.
// A failure leaves the selected file and any earlier analysis in place.
func (w *Workflow) FetchGainSeries(ctx context.Context) error {
	w.mu.Lock()
	gen := w.gen
	mode := chainMode{prev: w.state}
	w.state = AnalysisLoading
	w.lastErr = nil
	reqCtx, done := w.requestContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	return w.fetchGainSeries(reqCtx, gen, mode)
}

// chainMode describes how a gain fetch settles.
type chainMode struct {
	// afterUpload makes a failure drop the file and fall back to NoFile.
	afterUpload bool
	// prev is the state restored when a refresh fails.
	prev State
}

// FetchTopics retrieves the topic table for the current analysis.
func (w *Workflow) FetchTopics(ctx context.Context) error {
	w.mu.Lock()
	gen := w.gen
	reqCtx, done := w.requestContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	return w.fetchTopics(reqCtx, gen)
}

// FetchProgress retrieves the completion percentage for the current analysis.
func (w *Workflow) FetchProgress(ctx context.Context) error {
	w.mu.Lock()
	gen := w.gen
	reqCtx, done := w.requestContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	return w.fetchProgress(reqCtx, gen)
}

func (w *Workflow) fetchGainSeries(ctx context.Context, gen uint64, mode chainMode) error {
	data, err := w.remote.GainSeries(ctx)

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return ErrStale
	}
	if err == nil && data.Len() == 0 {
		err = ErrNoAnalysis
	}
	if err != nil {
		w.log.Error("gain series fetch failed", "error", err, "after_upload", mode.afterUpload)
		failure := fmt.Errorf("failed to fetch gain series: %w", err)
		if mode.afterUpload {
			w.clearAnalysisLocked()
			w.file = nil
			w.state = NoFile
		} else {
			w.state = w.settledStateLocked(mode.prev)
		}
		w.lastErr = failure
		w.mu.Unlock()
		return failure
	}
	active, _ := data.First()
	w.gain = data
	w.active = active
	w.mu.Unlock()

	w.log.Info("gain series loaded", "files", data.Len(), "active", active)

	// Topic and progress failures degrade their own view only.
	if err := w.fetchTopics(ctx, gen); errors.Is(err, ErrStale) {
		return err
	}
	if err := w.fetchProgress(ctx, gen); errors.Is(err, ErrStale) {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	// Toggles keep their values across a refresh of a ready analysis.
	if mode.afterUpload || mode.prev != AnalysisReady {
		w.showGraph = w.opts.ShowGraph
		w.showTopics = w.opts.ShowTopics
	}
	w.state = AnalysisReady
	return nil
}

// settledStateLocked maps the state seen before a refresh to one that is not loading.
func (w *Workflow) settledStateLocked(prev State) State {
	switch {
	case prev == AnalysisReady && w.gain.Len() > 0:
		return AnalysisReady
	case w.file != nil:
		return FileSelected
	default:
		return NoFile
	}
}

func (w *Workflow) fetchTopics(ctx context.Context, gen uint64) error {
	topics, err := w.remote.Topics(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	if err != nil {
		w.log.Warn("topics fetch failed", "error", err)
		return fmt.Errorf("failed to fetch topics: %w", err)
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	w.topics = topics
	return nil
}

func (w *Workflow) fetchProgress(ctx context.Context, gen uint64) error {
	fraction, err := w.remote.Progress(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return ErrStale
	}
	if err != nil {
		w.log.Warn("progress fetch failed", "error", err)
		w.progress = nil
		return fmt.Errorf("failed to fetch progress: %w", err)
	}
	pct := api.ProgressPercent(fraction)
	w.progress = &pct
	return nil
}

// advanceLocked starts a new generation and cancels requests of the old one.
func (w *Workflow) advanceLocked() {
	w.gen++
	w.cancelGen()
	w.genCtx, w.cancelGen = context.WithCancel(context.Background())
}

func (w *Workflow) clearAnalysisLocked() {
	w.active = ""
	w.gain = model.GainData{}
	w.topics = nil
	w.progress = nil
	w.showGraph = false
	w.showTopics = false
	w.lastErr = nil
}

// requestContextLocked derives a request context that is also cancelled when
// the current generation ends.
func (w *Workflow) requestContextLocked(ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(w.genCtx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

func (w *Workflow) recordUpload(ctx context.Context, file model.TranscriptFile, uploadErr error) {
	if w.opts.History == nil {
		return
	}
	var recErr error
	if uploadErr != nil {
		recErr = &UploadError{File: file.Name, Err: uploadErr}
	}
	rec := NewUploadRecord(file, recErr, w.opts.Now())
	if err := w.opts.History.InsertUpload(context.WithoutCancel(ctx), rec); err != nil {
		w.log.Warn("failed to record upload", "file", file.Name, "error", err)
	}
}

// NewUploadRecord builds the history row for an upload attempt.
func NewUploadRecord(file model.TranscriptFile, uploadErr error, at time.Time) model.UploadRecord {
	rec := model.UploadRecord{
		ID:         uuid.NewString(),
		Filename:   file.Name,
		Size:       len(file.Content),
		UploadedAt: at.UTC(),
		Status:     model.UploadSucceeded,
	}
	if uploadErr != nil {
		rec.Status = model.UploadFailed
		rec.Error = uploadErr.Error()
	}
	return rec
}
