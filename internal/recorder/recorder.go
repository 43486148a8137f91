// Package recorder persists completed analysis runs to the history store in
// the background so the generate path never blocks on the database.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapsight/client/internal/models"
)

// HistoryWriter stores finished analysis runs.
type HistoryWriter interface {
	Insert(ctx context.Context, userID string, item models.DetailedHistoryItem) error
}

// Config controls the concurrency characteristics of the recorder.
type Config struct {
	QueueSize int
	Workers   int
}

// Recorder asynchronously writes analysis results to history.
type Recorder struct {
	writer HistoryWriter
	logger *slog.Logger

	jobs   chan recordJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type recordJob struct {
	userID string
	item   models.DetailedHistoryItem
}

var errRecorderClosed = errors.New("recorder closed")

// New constructs a background worker pool writing history entries.
func New(writer HistoryWriter, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	rec := &Recorder{
		writer: writer,
		logger: logger,
		jobs:   make(chan recordJob, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Enqueue schedules a completed analysis for persistence. It assigns the
// history id and timestamp so callers only supply the payload.
func (r *Recorder) Enqueue(ctx context.Context, userID, fileKey, accessURL string, tasks []string, result models.AnalysisResult) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("recorder: user id must be provided")
	}

	item := models.DetailedHistoryItem{
		HistoryItem: models.HistoryItem{
			ID:        "hist_" + uuid.NewString(),
			FileKey:   fileKey,
			AccessURL: accessURL,
			CreatedAt: time.Now().UTC(),
		},
		Tasks:      tasks,
		Curation:   result.Curation,
		Caption:    result.Caption,
		Songs:      result.Songs,
		Topics:     result.Topics,
		Engagement: result.Engagement,
		Meta:       result.Meta,
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.ctx.Done():
		return "", errRecorderClosed
	default:
	}

	job := recordJob{userID: userID, item: item}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.ctx.Done():
		return "", errRecorderClosed
	case r.jobs <- job:
		return item.ID, nil
	}
}

// Shutdown waits for the worker pool to drain outstanding jobs.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		close(r.jobs)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for job := range r.jobs {
		r.handleJob(job)
	}
}

func (r *Recorder) handleJob(job recordJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.writer.Insert(ctx, job.userID, job.item); err != nil {
		r.logger.Error("record analysis", "historyId", job.item.ID, "userId", job.userID, "error", err)
	}
}
