package ports

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Locator      string
	Size         int64
	LastModified time.Time
}

// ObjectStore holds artifact bytes. Locators are opaque, stable once written
// and comparable for equality.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Copy(ctx context.Context, srcLocator, dstKey string) (string, error)
	Get(ctx context.Context, locator string) (io.ReadCloser, error)
	Stat(ctx context.Context, locator string) (ObjectInfo, error)
	Delete(ctx context.Context, locator string) error
}
