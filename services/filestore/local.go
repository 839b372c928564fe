// Package filestore provides FileStorage backends for uploaded files.
package filestore

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// localService stores files on the local disk and serves them from baseURL.
type localService struct {
	dir     string
	baseURL string
}

var _ core.FileStorage = (*localService)(nil)

func NewLocalService(conf *core.Config) (core.FileStorage, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &localService{dir: conf.Uploads.Dir, baseURL: conf.Uploads.BaseURL}, nil
}

func (svc *localService) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	f, err := os.Create(filepath.Join(svc.dir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", errors.Wrap(err, "writing file")
	}
	return path.Join(svc.baseURL, name), nil
}
