package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []*s3.DeleteObjectInput
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Backend_PutAndURL(t *testing.T) {
	client := &fakeS3{}
	backend := NewS3BackendWithClient(client, "health-project-ccc", " ap-northeast-2 ")
	store := NewAttachmentStore(backend, 0, nil)
	ctx := context.Background()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	loc, err := store.Store(ctx, "p1", Upload{Filename: "chart.png", Data: png})
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "health-project-ccc", aws.ToString(put.Bucket))
	assert.Regexp(t, `^posts/p1/[0-9a-f-]{36}\.png$`, aws.ToString(put.Key))
	assert.Equal(t, "image/png", aws.ToString(put.ContentType))
	assert.Equal(t, png, client.bodies[0])
	assert.Equal(t, "https://health-project-ccc.s3.ap-northeast-2.amazonaws.com/"+aws.ToString(put.Key), loc)

	require.NoError(t, store.Delete(ctx, loc))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, aws.ToString(put.Key), aws.ToString(client.deletes[0].Key))
}

func TestS3Backend_PutFailure(t *testing.T) {
	client := &fakeS3{putErr: errors.New("AccessDenied")}
	store := NewAttachmentStore(NewS3BackendWithClient(client, "b", "r"), 0, nil)
	_, err := store.Store(context.Background(), "p1", Upload{Filename: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestS3Backend_ForeignURL(t *testing.T) {
	backend := NewS3BackendWithClient(&fakeS3{}, "b", "r")
	_, ok := backend.KeyFromURL("https://other.s3.r.amazonaws.com/posts/x")
	assert.False(t, ok)
}
