package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileStorage is any service that can persist uploaded files and serve them back by URL.
type FileStorage interface {
	// Save persists the content under the given name and returns the URL it will be served from.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// UploadName builds a collision-resistant storage name for an uploaded file:
// timestamp + random suffix, keeping only the original extension.
// The client-provided filename is never trusted beyond that extension.
func UploadName(original string) string {
	ext := filepath.Ext(original)
	return fmt.Sprintf("%d-%s%s", time.Now().UnixNano()/int64(time.Millisecond), uuid.New().String(), ext)
}
