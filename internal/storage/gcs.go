package storage

import (
	"context"

	"gocloud.dev/blob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcp"
)

type gcs struct {
	bucket *blob.Bucket
}

func NewGCS(ctx context.Context, bucketName string, client *gcp.HTTPClient) (Bucket, error) {
	bucket, err := gcsblob.OpenBucket(ctx, client, bucketName, nil)

	if err != nil {
		return nil, err
	}

	return &gcs{bucket: bucket}, nil
}

func (g *gcs) Get(ctx context.Context, key string) (data []byte, err error) {
	return g.bucket.ReadAll(ctx, key)
}

func (g *gcs) Store(ctx context.Context, key string, data []byte) error {
	return g.bucket.WriteAll(ctx, key, data, nil)
}

func (g *gcs) List(ctx context.Context, prefix string) ([]string, error) {
	return list(ctx, g.bucket, prefix)
}
