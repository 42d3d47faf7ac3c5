// Package backend talks to the external store that holds sealed image packets.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotFound reports that the backend has no object for a handle.
	ErrNotFound = errors.New("backend object not found")
	// ErrUnavailable wraps every other backend failure.
	ErrUnavailable = errors.New("backend unavailable")
)

const notifyTimeout = 10 * time.Second

// Location identifies one stored packet.
type Location struct {
	Handle    string
	MessageID int64
}

// FileInfo is the result of a handle lookup.
type FileInfo struct {
	DownloadPath string
	Size         int64
}

// Backend is the message-store collaborator.
type Backend interface {
	UploadFile(ctx context.Context, data []byte, filename string) (Location, error)
	GetFileInfo(ctx context.Context, handle string) (FileInfo, error)
	DownloadFile(ctx context.Context, downloadPath string) ([]byte, error)
	DeleteMessage(ctx context.Context, loc Location) error
	SendLogMessage(ctx context.Context, text string) error
	TestConnection(ctx context.Context) error
}

// Download resolves handle and fetches its bytes.
func Download(ctx context.Context, b Backend, handle string) ([]byte, error) {
	info, err := b.GetFileInfo(ctx, handle)
	if err != nil {
		return nil, err
	}
	return b.DownloadFile(ctx, info.DownloadPath)
}

// Notify sends text to the backend log channel without blocking the caller.
// Failures are only logged.
func Notify(b Backend, logger *slog.Logger, text string) {
	if b == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := b.SendLogMessage(ctx, text); err != nil {
			logger.Warn("send log message", "error", err)
		}
	}()
}

func unavailable(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
