package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu         sync.Mutex
	objects    map[string][]byte
	bucketDown bool
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("missing")}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.bucketDown {
		return nil, errors.New("connection refused")
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Backend(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	b := NewS3WithClient(client, "images", nil)
	ctx := context.Background()

	loc, err := b.UploadFile(ctx, []byte("packet"), "uuid_cat.png")
	require.NoError(t, err)
	assert.Equal(t, Location{Handle: "uuid_cat.png"}, loc)

	data, err := Download(ctx, b, loc.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("packet"), data)

	require.NoError(t, b.DeleteMessage(ctx, loc))
	assert.ErrorIs(t, b.DeleteMessage(ctx, loc), ErrNotFound)

	_, err = b.DownloadFile(ctx, loc.Handle)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.SendLogMessage(ctx, "audit line"))
}

func TestS3TestConnection(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	b := NewS3WithClient(client, "images", nil)
	require.NoError(t, b.TestConnection(context.Background()))

	client.bucketDown = true
	assert.ErrorIs(t, b.TestConnection(context.Background()), ErrUnavailable)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{}, nil)
	assert.Error(t, err)
}
