package util

import (
	"context"
	"os"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"framefeed/internal/storage"
)

const bucketAttempts = 3

// Fetch reads a key with a few retries; object stores fail transiently.
func Fetch(ctx context.Context, bucket storage.Bucket, key string) ([]byte, error) {
	var data []byte

	err := retry.Do(func() error {
		var err error
		data, err = bucket.Get(ctx, key)
		return err
	}, retry.Attempts(bucketAttempts), retry.LastErrorOnly(true))

	return data, err
}

func Upload(ctx context.Context, bucket storage.Bucket, key string, path string) error {
	log.Debugf("upload '%s' to '%s'", path, key)

	data, err := os.ReadFile(path)

	if err != nil {
		return err
	}

	return retry.Do(func() error {
		return bucket.Store(ctx, key, data)
	}, retry.Attempts(bucketAttempts), retry.LastErrorOnly(true))
}
