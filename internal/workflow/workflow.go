package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/snapsight/client/internal/api"
	"github.com/snapsight/client/internal/imaging"
	"github.com/snapsight/client/internal/logging"
	"github.com/snapsight/client/internal/models"
	"github.com/snapsight/client/internal/resultcache"
	"github.com/snapsight/client/internal/session"
)

// State names one phase of the upload-and-analyse workflow.
type State string

const (
	StateIdle       State = "idle"
	StatePresigning State = "presigning"
	StateUploading  State = "uploading"
	StateAnalyzing  State = "analyzing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// ErrBusy is returned when Run is called while a run is already active or
// a finished run has not been reset. The in-flight run is unaffected.
var ErrBusy = errors.New("workflow: a run is already active")

// SlotRequester acquires single-use upload credentials.
type SlotRequester interface {
	RequestUploadSlot(ctx context.Context, fileName, contentType string) (models.UploadSlot, error)
}

// Analyzer triggers the backend analysis job for an uploaded object.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error)
}

// Uploader performs the direct transfer to object storage.
type Uploader interface {
	Put(ctx context.Context, uploadURL string, f imaging.File, onProgress func(int)) error
}

// Config carries the tunables of one workflow instance.
type Config struct {
	// MaxUploadBytes is the compression threshold; larger files are
	// re-encoded before upload.
	MaxUploadBytes int64
	// MaxDimension bounds the longest side when re-encoding.
	MaxDimension int
	// Language is forwarded to the analysis request.
	Language string
	// Tasks enumerates the analysis facets to compute. Empty means all.
	Tasks []string
	// MaxSongs and MaxTopics bound list sizes in the response.
	MaxSongs  int
	MaxTopics int
}

func (c *Config) applyDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 2 << 20
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = 1920
	}
	if c.Language == "" {
		c.Language = "id"
	}
	if len(c.Tasks) == 0 {
		c.Tasks = models.AllTasks()
	}
	if c.MaxSongs <= 0 {
		c.MaxSongs = 5
	}
	if c.MaxTopics <= 0 {
		c.MaxTopics = 8
	}
}

// Workflow sequences one image through normalize, presign, upload, and
// analyse, and persists the combined record on success. A Workflow is
// single-flight: at most one run is active at a time.
type Workflow struct {
	slots    SlotRequester
	uploader Uploader
	analyzer Analyzer
	sessions session.Store
	results  resultcache.Slot
	cfg      Config
	logger   *slog.Logger

	// OnProgress, when set, observes upload percentages. Callbacks are
	// monotonically non-decreasing within a run.
	OnProgress func(percent int)

	mu       sync.Mutex
	state    State
	progress int
	reason   string
}

// New constructs a Workflow. All collaborators are required except the
// logger, which falls back to slog.Default().
func New(slots SlotRequester, uploader Uploader, analyzer Analyzer, sessions session.Store, results resultcache.Slot, cfg Config, logger *slog.Logger) *Workflow {
	if slots == nil || uploader == nil || analyzer == nil || sessions == nil || results == nil {
		panic("workflow: all collaborators must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Workflow{
		slots:    slots,
		uploader: uploader,
		analyzer: analyzer,
		sessions: sessions,
		results:  results,
		cfg:      cfg,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the current phase.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Progress returns the last observed upload percentage for the current
// run.
func (w *Workflow) Progress() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progress
}

// Err returns the human-readable failure reason, empty outside the error
// state. Backend messages are preserved verbatim.
func (w *Workflow) Err() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// Reset rearms a finished workflow. It is a no-op while a run is active.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSuccess || w.state == StateError {
		w.state = StateIdle
		w.progress = 0
		w.reason = ""
	}
}

// Run executes the full sequence for f. Steps run strictly in order;
// no step starts before its predecessor succeeded, and a failed step
// aborts the run with no retry — the next attempt starts from scratch
// with a fresh slot. On success exactly one AnalysisRecord is written to
// the result slot and returned.
func (w *Workflow) Run(ctx context.Context, f imaging.File) (models.AnalysisRecord, error) {
	if err := w.begin(); err != nil {
		return models.AnalysisRecord{}, err
	}

	// Credential guard: a missing token short-circuits before any
	// network traffic.
	if _, ok := w.sessions.Get(); !ok {
		return models.AnalysisRecord{}, w.fail(api.ErrUnauthenticated)
	}

	ctx, span := logging.StartSpan(ctx, "workflow.run")
	defer span.End()
	logger := logging.FromContext(ctx)

	normalized, err := imaging.Normalize(f, w.cfg.MaxUploadBytes, w.cfg.MaxDimension)
	if err != nil {
		logger.Error("image normalization failed", "file", f.Name, "error", err)
		return models.AnalysisRecord{}, w.fail(err)
	}
	if normalized.Size() != f.Size() {
		logger.Info("image recompressed",
			slog.String("file", f.Name),
			slog.Int64("originalBytes", f.Size()),
			slog.Int64("uploadBytes", normalized.Size()),
		)
	}

	slot, err := w.slots.RequestUploadSlot(ctx, normalized.Name, normalized.ContentType)
	if err != nil {
		logger.Error("upload slot request failed", "file", normalized.Name, "error", err)
		return models.AnalysisRecord{}, w.fail(err)
	}

	w.setState(StateUploading)
	err = w.uploader.Put(ctx, slot.UploadURL, normalized, func(percent int) {
		w.setProgress(percent)
		if w.OnProgress != nil {
			w.OnProgress(percent)
		}
	})
	if err != nil {
		logger.Error("upload failed", "fileKey", slot.FileKey, "error", err)
		return models.AnalysisRecord{}, w.fail(err)
	}

	w.setState(StateAnalyzing)
	result, err := w.analyzer.Analyze(ctx, models.AnalyzeRequest{
		FileKey:  slot.FileKey,
		Tasks:    w.cfg.Tasks,
		Language: w.cfg.Language,
		Limits:   models.AnalyzeLimits{MaxSongs: w.cfg.MaxSongs, MaxTopics: w.cfg.MaxTopics},
	})
	if err != nil {
		logger.Error("analysis failed", "fileKey", slot.FileKey, "error", err)
		return models.AnalysisRecord{}, w.fail(err)
	}

	record := models.AnalysisRecord{AnalysisResult: result, AccessURL: slot.AccessURL}
	if err := w.results.Put(record); err != nil {
		logger.Error("persist analysis record", "fileKey", slot.FileKey, "error", err)
		return models.AnalysisRecord{}, w.fail(err)
	}

	w.setState(StateSuccess)
	logger.Info("analysis completed", slog.String("fileKey", slot.FileKey))
	return record, nil
}

// begin transitions idle -> presigning, enforcing single-flight.
func (w *Workflow) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrBusy, w.state)
	}
	w.state = StatePresigning
	w.progress = 0
	w.reason = ""
	return nil
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// setProgress records percent, ignoring regressions so the observable
// value never decreases within a run.
func (w *Workflow) setProgress(percent int) {
	w.mu.Lock()
	if percent > w.progress {
		w.progress = percent
	}
	w.mu.Unlock()
}

// fail records the reason and enters the error state, passing err through
// for the caller.
func (w *Workflow) fail(err error) error {
	w.mu.Lock()
	w.state = StateError
	w.reason = err.Error()
	w.mu.Unlock()
	return err
}
