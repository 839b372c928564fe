package filestore

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// b2Service stores files in a Backblaze B2 bucket.
type b2Service struct {
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Service)(nil)

func NewB2Service(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	client, err := b2.NewClient(ctx, conf.B2.AccountID, conf.B2.AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Service{bucket: bucket}, nil
}

func (svc *b2Service) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	obj := svc.bucket.Object(name)
	w := obj.NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing b2 object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing b2 writer")
	}
	return obj.URL(), nil
}
