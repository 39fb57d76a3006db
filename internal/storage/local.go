package storage

import (
	"context"
	"io"
	"os"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

type local struct {
	bucket *blob.Bucket
}

// NewLocal opens a directory as a bucket, creating it if absent.
func NewLocal(ctx context.Context, path string) (Bucket, error) {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, err
	}

	bucket, err := fileblob.OpenBucket(path, nil)

	if err != nil {
		return nil, err
	}

	return &local{bucket: bucket}, nil
}

func (l *local) Get(ctx context.Context, key string) (data []byte, err error) {
	return l.bucket.ReadAll(ctx, key)
}

func (l *local) Store(ctx context.Context, key string, data []byte) error {
	return l.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{})
}

func (l *local) List(ctx context.Context, prefix string) ([]string, error) {
	return list(ctx, l.bucket, prefix)
}

func list(ctx context.Context, bucket *blob.Bucket, prefix string) ([]string, error) {
	iter := bucket.List(&blob.ListOptions{Prefix: prefix})

	var keys []string

	for {
		obj, err := iter.Next(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		if obj.IsDir {
			continue
		}

		keys = append(keys, obj.Key)
	}

	return keys, nil
}
