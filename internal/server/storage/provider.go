package storage

import (
	"context"
	"io"
	"time"
)

// SignedURLTTL is the validity window for presigned evidence links. Readers
// re-derive links on every fetch, so a short window is safe.
const SignedURLTTL = 10 * time.Minute

// Provider is the evidence image store.
type Provider interface {
	// Put stores an object under objectKey, overwriting any previous object
	// at the same key.
	Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error

	// Exists reports whether an object is stored under objectKey.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// PublicURL returns the durable, non-expiring reference for an object.
	PublicURL(objectKey string) string

	// PresignedURL generates a time-limited signed GET link for an object.
	// The link must not be publicly cacheable.
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)

	// CheckBucket ensures the backing bucket exists (startup check).
	CheckBucket(ctx context.Context) error
}

// ObjectKey returns the canonical storage path for a node's evidence image
// within a cycle. Re-ingesting the same node and cycle overwrites in place.
func ObjectKey(cycleID, node string) string {
	return "cycles/" + cycleID + "/" + node + ".jpg"
}
