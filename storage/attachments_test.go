package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend records calls and fails on demand.
type flakyBackend struct {
	objects   map[string][]byte
	failPutAt int // 1-based; 0 never fails
	failDel   map[string]bool
	puts      int
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{objects: map[string][]byte{}, failDel: map[string]bool{}}
}

func (b *flakyBackend) PutObject(_ context.Context, key string, body []byte, _ string) error {
	b.puts++
	if b.failPutAt == b.puts {
		return errors.New("access denied")
	}
	b.objects[key] = body
	return nil
}

func (b *flakyBackend) DeleteObject(_ context.Context, key string) error {
	if b.failDel[key] {
		return errors.New("network down")
	}
	delete(b.objects, key)
	return nil
}

func (b *flakyBackend) PublicURL(key string) string { return "mem://" + key }

func (b *flakyBackend) KeyFromURL(location string) (string, bool) {
	if !strings.HasPrefix(location, "mem://") {
		return "", false
	}
	return strings.TrimPrefix(location, "mem://"), true
}

var objectKeyPattern = regexp.MustCompile(`^posts/post-1/[0-9a-f-]{36}\.(png|dat)$`)

func TestObjectKey(t *testing.T) {
	assert.Regexp(t, objectKeyPattern, ObjectKey("post-1", "Photo.PNG"))
	assert.Regexp(t, objectKeyPattern, ObjectKey("post-1", "noext"))
	assert.NotEqual(t, ObjectKey("post-1", "a.png"), ObjectKey("post-1", "a.png"))
}

func TestObjectKey_UnsafeExtensionFallsBack(t *testing.T) {
	for _, name := range []string{"a. b", "a.p%2Fng", "a.verylongextension", "a.", "a.jp g", "a.ф"} {
		key := ObjectKey("post-1", name)
		assert.True(t, strings.HasSuffix(key, ".dat"), "%q -> %s", name, key)
		assert.Regexp(t, objectKeyPattern, key)
	}
	assert.True(t, strings.HasSuffix(ObjectKey("post-1", "scan.JPEG"), ".jpeg"))
}

func TestStore_ScopesKeyByPost(t *testing.T) {
	backend := newFlakyBackend()
	store := NewAttachmentStore(backend, 0, nil)

	loc, err := store.Store(context.Background(), "post-1", Upload{Filename: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	key, ok := backend.KeyFromURL(loc)
	require.True(t, ok)
	assert.Regexp(t, objectKeyPattern, key)
	assert.Equal(t, []byte("x"), backend.objects[key])
}

func TestStore_FailureStoresNothing(t *testing.T) {
	backend := newFlakyBackend()
	backend.failPutAt = 1
	store := NewAttachmentStore(backend, 0, nil)

	loc, err := store.Store(context.Background(), "post-1", Upload{Filename: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Empty(t, loc)
	assert.Empty(t, backend.objects)
}

func TestStore_SizeLimit(t *testing.T) {
	store := NewAttachmentStore(newFlakyBackend(), 4, nil)
	_, err := store.Store(context.Background(), "p", Upload{Filename: "a.txt", Data: []byte("12345")})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Store(context.Background(), "p", Upload{Filename: "a.txt", Data: []byte("1234")})
	assert.NoError(t, err)
}

func TestStoreAll_RollsBackOnFailure(t *testing.T) {
	backend := newFlakyBackend()
	backend.failPutAt = 3
	store := NewAttachmentStore(backend, 0, nil)

	uploads := []Upload{
		{Filename: "1.jpg", Data: []byte("1")},
		{Filename: "2.jpg", Data: []byte("2")},
		{Filename: "3.jpg", Data: []byte("3")},
	}
	locs, err := store.StoreAll(context.Background(), "p", uploads)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Nil(t, locs)
	assert.Empty(t, backend.objects, "already stored files are removed")
}

func TestDeleteAll_ReportsPartialFailure(t *testing.T) {
	backend := newFlakyBackend()
	store := NewAttachmentStore(backend, 0, nil)
	ctx := context.Background()

	locs, err := store.StoreAll(ctx, "p", []Upload{{Filename: "a"}, {Filename: "b"}, {Filename: "c"}})
	require.NoError(t, err)
	stuck, _ := backend.KeyFromURL(locs[1])
	backend.failDel[stuck] = true

	res := store.DeleteAll(ctx, append(locs, "https://elsewhere.example.com/x.png"))
	assert.Equal(t, CleanupResult{Attempted: 4, Deleted: 2, Failed: 2}, res)
	assert.Len(t, backend.objects, 1)

	assert.ErrorIs(t, store.Delete(ctx, "https://elsewhere.example.com/x.png"), ErrUnknownLocation)
}

func TestFilesystemBackend_StoreAndDelete(t *testing.T) {
	root := t.TempDir()
	backend, err := NewFilesystemBackend(root, "/static/uploads/")
	require.NoError(t, err)
	store := NewAttachmentStore(backend, 1<<20, nil)
	ctx := context.Background()

	loc, err := store.Store(ctx, "post-9", Upload{Filename: "meal.jpg", Data: []byte("jpegbytes")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc, "/static/uploads/posts/post-9/"), loc)

	key, ok := backend.KeyFromURL(loc)
	require.True(t, ok)
	onDisk := filepath.Join(root, filepath.FromSlash(key))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "jpegbytes", string(data))

	require.NoError(t, store.Delete(ctx, loc))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is harmless
	assert.NoError(t, store.Delete(ctx, loc))
}

func TestFilesystemBackend_RejectsTraversal(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir(), "/u")
	require.NoError(t, err)
	assert.Error(t, backend.PutObject(context.Background(), "../escape.txt", []byte("x"), ""))
	assert.Error(t, backend.DeleteObject(context.Background(), "posts/../../x"))
}
