package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUploadFailed indicates the object store rejected or never acknowledged an upload
	ErrUploadFailed = errors.New("attachment upload failed")

	// ErrTooLarge indicates an upload above the configured size limit
	ErrTooLarge = errors.New("attachment exceeds size limit")

	// ErrUnknownLocation indicates a location that was not produced by this store
	ErrUnknownLocation = errors.New("attachment location not managed by this store")
)

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CleanupResult reports a best-effort batch deletion.
type CleanupResult struct {
	Attempted int
	Deleted   int
	Failed    int
}

// AttachmentStore turns uploaded bytes into durable public locations scoped by post id.
// It knows nothing about posts beyond the id used as a key prefix.
type AttachmentStore struct {
	backend  Backend
	maxBytes int64
	log      *zap.Logger
}

// NewAttachmentStore wraps backend. maxBytes <= 0 disables the size check.
func NewAttachmentStore(backend Backend, maxBytes int64, log *zap.Logger) *AttachmentStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttachmentStore{backend: backend, maxBytes: maxBytes, log: log}
}

var safeExt = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// ObjectKey builds posts/<postID>/<uuid>.<ext>. An extension that is not 1-10 lowercase
// letters or digits becomes "dat".
func ObjectKey(postID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !safeExt.MatchString(ext) {
		ext = "dat"
	}
	return fmt.Sprintf("posts/%s/%s.%s", postID, uuid.NewString(), ext)
}

// Store uploads one file and returns its public location. Either a location is returned
// or nothing was stored.
func (s *AttachmentStore) Store(ctx context.Context, postID string, up Upload) (string, error) {
	if postID == "" {
		return "", fmt.Errorf("%w: missing post id", ErrUploadFailed)
	}
	if s.maxBytes > 0 && int64(len(up.Data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(up.Data).String()
	}

	key := ObjectKey(postID, up.Filename)
	if err := s.backend.PutObject(ctx, key, up.Data, contentType); err != nil {
		s.log.Error("attachment upload failed", zap.String("post_id", postID), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.backend.PublicURL(key), nil
}

// StoreAll uploads every file in order. If one fails, the ones already stored are removed
// and the error is returned.
func (s *AttachmentStore) StoreAll(ctx context.Context, postID string, uploads []Upload) ([]string, error) {
	locations := make([]string, 0, len(uploads))
	for _, up := range uploads {
		loc, err := s.Store(ctx, postID, up)
		if err != nil {
			s.DeleteAll(context.WithoutCancel(ctx), locations)
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// Delete removes the object behind location.
func (s *AttachmentStore) Delete(ctx context.Context, location string) error {
	key, ok := s.backend.KeyFromURL(location)
	if !ok {
		return ErrUnknownLocation
	}
	return s.backend.DeleteObject(ctx, key)
}

// DeleteAll removes every location, logging failures instead of returning them.
func (s *AttachmentStore) DeleteAll(ctx context.Context, locations []string) CleanupResult {
	res := CleanupResult{Attempted: len(locations)}
	for _, loc := range locations {
		if err := s.Delete(ctx, loc); err != nil {
			res.Failed++
			s.log.Warn("attachment cleanup failed", zap.String("location", loc), zap.Error(err))
			continue
		}
		res.Deleted++
	}
	return res
}
