package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	loc, err := m.UploadFile(ctx, []byte("abc"), "x.png")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	data, err := Download(ctx, m, loc.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	assert.ErrorIs(t, m.DeleteMessage(ctx, Location{Handle: loc.Handle, MessageID: loc.MessageID + 1}), ErrNotFound)
	require.NoError(t, m.DeleteMessage(ctx, loc))
	assert.Zero(t, m.Len())

	m.BeforeUpload = func(context.Context, string) error { return errors.New("flood wait") }
	_, err = m.UploadFile(ctx, []byte("abc"), "x.png")
	assert.ErrorIs(t, err, ErrUnavailable)

	m.Healthy = func() error { return errors.New("down") }
	assert.ErrorIs(t, m.TestConnection(ctx), ErrUnavailable)

	require.NoError(t, m.SendLogMessage(ctx, "hello"))
	assert.Equal(t, []string{"hello"}, m.Logs())
}
