package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/graphlearn/pkg/loader"
)

// S3BlobLoader downloads documents from an S3 bucket. Concurrent downloads of
// the same key share one request.
type S3BlobLoader struct {
	bucket   string
	maxBytes int64
	client   *s3.Client

	group singleflight.Group
}

// NewS3BlobLoaderWithClient reuses a preconfigured client.
func NewS3BlobLoaderWithClient(bucket string, client *s3.Client) *S3BlobLoader {
	return &S3BlobLoader{
		bucket: bucket,
		client: client,
	}
}

// NewS3BlobLoaderParams defines the configuration for NewS3BlobLoader.
//
// Endpoint overrides the S3 endpoint for S3 compatible storage like MinIO,
// in which case path style addressing is used.
type NewS3BlobLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	MaxBytes  int64
}

// NewS3BlobLoader creates a loader with static credentials.
//
// Example:
//
//	blobs, err := s3.NewS3BlobLoader(ctx, s3.NewS3BlobLoaderParams{
//		Bucket:    "documents",
//		Endpoint:  "http://localhost:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
func NewS3BlobLoader(ctx context.Context, params NewS3BlobLoaderParams) (*S3BlobLoader, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(params.Region),
	}
	if params.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)))
	}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = params.Endpoint != ""
	})

	return &S3BlobLoader{
		bucket:   params.Bucket,
		maxBytes: params.MaxBytes,
		client:   client,
	}, nil
}

// Download implements loader.BlobLoader. Missing keys map to loader.ErrBlobNotFound.
func (l *S3BlobLoader) Download(ctx context.Context, location string) ([]byte, error) {
	result, err, _ := l.group.Do(location, func() (any, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(location),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			var notFound *types.NotFound
			if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: s3://%s/%s", loader.ErrBlobNotFound, l.bucket, location)
			}
			return nil, fmt.Errorf("failed to get object from S3: %w", err)
		}
		defer out.Body.Close()

		return loader.ReadAllLimited(out.Body, l.maxBytes)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
