// Package ingest validates uploads, queues them and runs the single worker
// that writes them to the backend.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"imgvault/internal/models"
)

var (
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidFileFormat = errors.New("invalid file format")
)

// Sealer encrypts raw image bytes into a packet.
type Sealer interface {
	EncryptBytes(plaintext []byte) ([]byte, error)
}

// Submission is one upload as received from a client.
type Submission struct {
	Data       []byte
	Filename   string
	MimeType   string
	ClientAddr string
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	MaxFileSize  int64
	AllowedTypes []string
	Sealer       Sealer
	Queue        *Queue
	Logger       *slog.Logger
}

// Pipeline turns submissions into queued upload jobs.
type Pipeline struct {
	maxFileSize int64
	allowed     map[string]struct{}
	sealer      Sealer
	queue       *Queue
	logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewPipeline validates opts and returns a pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be > 0")
	}
	if opts.Sealer == nil {
		return nil, fmt.Errorf("sealer is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, value := range opts.AllowedTypes {
		if mediaType := normalizeMediaType(value); mediaType != "" {
			allowed[mediaType] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("at least one allowed image type is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		maxFileSize: opts.MaxFileSize,
		allowed:     allowed,
		sealer:      opts.Sealer,
		queue:       opts.Queue,
		logger:      logger.With("component", "pipeline"),
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
	}, nil
}

// MaxFileSize returns the largest accepted upload in bytes.
func (p *Pipeline) MaxFileSize() int64 {
	return p.maxFileSize
}

// Submit validates and encrypts sub, then enqueues it. It blocks while the
// queue is full and returns the job id once the job is queued.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (string, error) {
	size := int64(len(sub.Data))
	if size > p.maxFileSize {
		return "", fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, p.maxFileSize)
	}

	mimeType := ResolveMimeType(sub.MimeType, sub.Filename)
	if _, ok := p.allowed[mimeType]; !ok {
		return "", fmt.Errorf("%w: type %s is not allowed", ErrInvalidFileFormat, mimeType)
	}
	if err := checkImage(sub.Data); err != nil {
		return "", err
	}

	packet, err := p.sealer.EncryptBytes(sub.Data)
	if err != nil {
		return "", fmt.Errorf("encrypt upload: %w", err)
	}

	jobID := p.newID()
	job := models.UploadJob{
		ID:               jobID,
		EncryptedPayload: packet,
		Filename:         storageFilename(jobID, sub.Filename),
		OriginalSize:     size,
		MimeType:         mimeType,
		ClientAddr:       sub.ClientAddr,
		QueuedAt:         p.now().UTC(),
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	p.logger.Debug("job queued",
		"job_id", jobID,
		"size", size,
		"mime_type", mimeType,
		"client", sub.ClientAddr,
		"queue_len", p.queue.Len(),
	)
	return jobID, nil
}

// ValidJobID reports whether id looks like a job id this pipeline issues.
func ValidJobID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
