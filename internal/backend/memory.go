package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Memory keeps packets in process memory. It backs development runs and
// tests; everything is lost on restart.
type Memory struct {
	mu       sync.Mutex
	objects  map[string][]byte
	messages map[int64]string
	nextID   int64
	logs     []string
	logger   *slog.Logger

	// BeforeUpload, when set, runs before every upload and can fail it.
	BeforeUpload func(ctx context.Context, filename string) error
	// Healthy reports the TestConnection result; nil means healthy.
	Healthy func() error
}

// NewMemory returns an empty in-memory backend.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		objects:  make(map[string][]byte),
		messages: make(map[int64]string),
		logger:   logger.With("component", "memory_storage"),
	}
}

func (m *Memory) UploadFile(ctx context.Context, data []byte, filename string) (Location, error) {
	if m.BeforeUpload != nil {
		if err := m.BeforeUpload(ctx, filename); err != nil {
			return Location{}, unavailable("upload", err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	handle := fmt.Sprintf("mem-%d", m.nextID)
	m.objects[handle] = append([]byte(nil), data...)
	m.messages[m.nextID] = handle
	return Location{Handle: handle, MessageID: m.nextID}, nil
}

func (m *Memory) GetFileInfo(_ context.Context, handle string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[handle]
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	return FileInfo{DownloadPath: handle, Size: int64(len(data))}, nil
}

func (m *Memory) DownloadFile(_ context.Context, downloadPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[downloadPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, downloadPath)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) DeleteMessage(_ context.Context, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.messages[loc.MessageID]
	if !ok || handle != loc.Handle {
		return fmt.Errorf("%w: message %d", ErrNotFound, loc.MessageID)
	}
	delete(m.messages, loc.MessageID)
	delete(m.objects, handle)
	return nil
}

func (m *Memory) SendLogMessage(_ context.Context, text string) error {
	m.mu.Lock()
	m.logs = append(m.logs, text)
	m.mu.Unlock()
	m.logger.Debug("audit", "message", text)
	return nil
}

func (m *Memory) TestConnection(context.Context) error {
	if m.Healthy != nil {
		if err := m.Healthy(); err != nil {
			return unavailable("test connection", err)
		}
	}
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Logs returns a copy of the log-channel messages sent so far.
func (m *Memory) Logs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logs...)
}
