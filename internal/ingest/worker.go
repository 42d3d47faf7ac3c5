package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"imgvault/internal/backend"
	"imgvault/internal/models"
)

// DefaultUploadDelay keeps the worker under typical bot API quotas.
const DefaultUploadDelay = 3 * time.Second

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Queue   *Queue
	Store   *JobStore
	Backend backend.Backend
	Delay   time.Duration
	Logger  *slog.Logger
}

// Worker is the only writer to the backend. It handles one job at a time in
// queue order and pauses for Delay after every job.
type Worker struct {
	queue   *Queue
	store   *JobStore
	backend backend.Backend
	delay   time.Duration
	logger  *slog.Logger
}

// NewWorker validates opts and returns a worker.
func NewWorker(opts WorkerOptions) (*Worker, error) {
	if opts.Queue == nil || opts.Store == nil || opts.Backend == nil {
		return nil, fmt.Errorf("worker requires queue, store and backend")
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("worker delay must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:   opts.Queue,
		store:   opts.Store,
		backend: opts.Backend,
		delay:   opts.Delay,
		logger:  logger.With("component", "worker"),
	}, nil
}

// Run consumes jobs until ctx is done. Jobs still queued at that point are
// dropped.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("upload worker started", "queue_capacity", w.queue.Cap(), "delay", w.delay)
	defer func() {
		w.logger.Info("upload worker stopped", "dropped_jobs", w.queue.Len())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue.jobs:
			w.process(ctx, job)
			if !w.pause(ctx) {
				return
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, job models.UploadJob) {
	w.logger.Info("processing job", "job_id", job.ID, "waited", time.Since(job.QueuedAt).Round(time.Millisecond))

	ref, err := w.upload(context.WithoutCancel(ctx), job)
	if err != nil {
		w.logger.Error("upload job failed", "job_id", job.ID, "client", job.ClientAddr, "error", err)
		backend.Notify(w.backend, w.logger, fmt.Sprintf(
			"Upload failed | job=%s | error=%v | ip=%s", job.ID, err, job.ClientAddr))
		return
	}

	w.store.Put(job.ID, ref)
	w.logger.Info("upload job completed", "job_id", job.ID, "message_id", ref.MessageID, "size", ref.Size)
	backend.Notify(w.backend, w.logger, fmt.Sprintf(
		"Upload succeeded | job=%s | size=%d | type=%s | ip=%s", job.ID, job.OriginalSize, job.MimeType, job.ClientAddr))
}

func (w *Worker) upload(ctx context.Context, job models.UploadJob) (models.FileReference, error) {
	loc, err := w.backend.UploadFile(ctx, job.EncryptedPayload, job.Filename)
	if err != nil {
		return models.FileReference{}, err
	}
	ref, err := models.NewFileReference(loc.Handle, loc.MessageID, job.OriginalSize, job.MimeType)
	if err != nil {
		return models.FileReference{}, fmt.Errorf("build file reference: %w", err)
	}
	return ref, nil
}

func (w *Worker) pause(ctx context.Context) bool {
	if w.delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
