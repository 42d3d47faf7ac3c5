package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend(t *testing.T) {
	b, err := NewLocal(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.TestConnection(ctx))

	first, err := b.UploadFile(ctx, []byte("one"), "a.png")
	require.NoError(t, err)
	second, err := b.UploadFile(ctx, []byte("two"), "b.png")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.MessageID)
	assert.Equal(t, int64(2), second.MessageID)
	assert.NotEqual(t, first.Handle, second.Handle)

	info, err := b.GetFileInfo(ctx, first.Handle)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)

	data, err := Download(ctx, b, second.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	require.NoError(t, b.DeleteMessage(ctx, first))
	assert.ErrorIs(t, b.DeleteMessage(ctx, first), ErrNotFound)
	_, err = b.GetFileInfo(ctx, first.Handle)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.GetFileInfo(ctx, "telegram-file-id")
	assert.ErrorIs(t, err, ErrNotFound)
}
