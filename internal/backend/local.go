package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"imgvault/internal/blobstore"
)

// Local keeps packets in a blobstore.Store on disk. Message ids come from a
// process-local counter and carry no meaning across restarts.
type Local struct {
	store  blobstore.Store
	nextID atomic.Int64
	logger *slog.Logger
}

// NewLocal opens a content-addressed store under root.
func NewLocal(root string, logger *slog.Logger) (*Local, error) {
	cas, err := blobstore.NewLocalCAS(root)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	return NewLocalWithStore(cas, logger), nil
}

// NewLocalWithStore wraps an existing store.
func NewLocalWithStore(store blobstore.Store, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{store: store, logger: logger.With("component", "local_storage")}
}

func (l *Local) UploadFile(ctx context.Context, data []byte, filename string) (Location, error) {
	result, err := l.store.Put(ctx, bytes.NewReader(data))
	if err != nil {
		return Location{}, unavailable("put blob", err)
	}
	l.logger.Debug("stored blob", "key", result.Key, "filename", filename, "size", result.SizeBytes)
	return Location{Handle: result.Key, MessageID: l.nextID.Add(1)}, nil
}

func (l *Local) GetFileInfo(ctx context.Context, handle string) (FileInfo, error) {
	size, err := l.store.Size(ctx, handle)
	if err != nil {
		return FileInfo{}, l.classify("stat blob", err)
	}
	return FileInfo{DownloadPath: handle, Size: size}, nil
}

func (l *Local) DownloadFile(ctx context.Context, downloadPath string) ([]byte, error) {
	rc, err := l.store.Open(ctx, downloadPath)
	if err != nil {
		return nil, l.classify("open blob", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, unavailable("read blob", err)
	}
	return data, nil
}

func (l *Local) DeleteMessage(ctx context.Context, loc Location) error {
	if err := l.store.Delete(ctx, loc.Handle); err != nil {
		return l.classify("delete blob", err)
	}
	return nil
}

func (l *Local) SendLogMessage(_ context.Context, text string) error {
	l.logger.Info("audit", "message", text)
	return nil
}

func (l *Local) TestConnection(ctx context.Context) error {
	if err := l.store.Check(ctx); err != nil {
		return unavailable("check storage", err)
	}
	return nil
}

func (l *Local) classify(op string, err error) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return unavailable(op, err)
}
