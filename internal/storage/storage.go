package storage

import (
	"context"
)

// Bucket is where a training corpus lives: local disk for single-machine
// jobs, S3 or GCS when the corpus is shared between training hosts.
type Bucket interface {
	Get(ctx context.Context, key string) (data []byte, err error)
	Store(ctx context.Context, key string, data []byte) (err error)
	List(ctx context.Context, prefix string) (keys []string, err error)
}
