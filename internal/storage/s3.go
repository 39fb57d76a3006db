package storage

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"
)

type s3 struct {
	bucket *blob.Bucket
}

func NewS3(ctx context.Context, bucketName string, config *aws.Config) (Bucket, error) {
	sess, err := session.NewSession(config)

	if err != nil {
		return nil, err
	}

	bucket, err := s3blob.OpenBucket(ctx, sess, bucketName, nil)

	if err != nil {
		return nil, err
	}

	return &s3{bucket: bucket}, nil
}

func (s *s3) Get(ctx context.Context, key string) (data []byte, err error) {
	return s.bucket.ReadAll(ctx, key)
}

func (s *s3) Store(ctx context.Context, key string, data []byte) error {
	return s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{})
}

func (s *s3) List(ctx context.Context, prefix string) ([]string, error) {
	return list(ctx, s.bucket, prefix)
}
