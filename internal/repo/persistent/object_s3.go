package persistent

import (
	"context"
	"fmt"
	"io"

	"github.com/avolkhin/image-moderation/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectRepo adapts the S3 client to the pipeline's object-store contract.
// The bucket travels per call because quarantine removals act on whatever
// bucket the dead-lettered notification names.
type ObjectRepo struct {
	*s3client.S3Client
}

func NewObjectRepo(s3c *s3client.S3Client) *ObjectRepo {
	return &ObjectRepo{s3c}
}

func (r *ObjectRepo) Upload(ctx context.Context, bucket, key string, data io.Reader, contentType string, size int64) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("ObjectRepo - Upload - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *ObjectRepo) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("ObjectRepo - Download - r.Client.GetObject: %w", err)
	}

	return result.Body, nil
}

func (r *ObjectRepo) Delete(ctx context.Context, bucket, key string) error {
	_, err := r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ObjectRepo - Delete - r.Client.DeleteObject: %w", err)
	}

	return nil
}
