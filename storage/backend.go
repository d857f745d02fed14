package storage

import "context"

// Backend is the object-store capability the attachment adapter relies on.
// A single PutObject is all-or-nothing.
type Backend interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	// PublicURL builds the externally addressable location of key.
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL. It returns false for locations this backend did not produce.
	KeyFromURL(location string) (string, bool)
}
