package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3-compatible endpoint
type S3Config struct {
	Endpoint        string // empty for AWS
	Region          string
	AccessKeyID     string // empty to use the default credential chain
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Store implements BlobStore on S3 or any S3-compatible service
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Store loads AWS configuration and builds the client and uploader
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreFromClient(client), nil
}

// NewS3StoreFromClient wraps an existing client
func NewS3StoreFromClient(client *s3.Client) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// Download streams the object body into w
func (s *S3Store) Download(ctx context.Context, bucket, path string, w io.Writer) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, path)
		}
		return 0, fmt.Errorf("failed to download %q: %w", path, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(w, out.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read body for %q: %w", path, err)
	}
	return n, nil
}

// Upload stores r with the given content type, cache policy and metadata
func (s *S3Store) Upload(ctx context.Context, bucket, path string, r io.Reader, opts UploadOptions) (ObjectRef, error) {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(path),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return ObjectRef{}, fmt.Errorf("failed to upload %q: %w", path, err)
	}
	return ObjectRef{Bucket: bucket, Path: path}, nil
}

// Stat issues a HEAD request for the object
func (s *S3Store) Stat(ctx context.Context, bucket, path string) (*Metadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, path)
		}
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	return &Metadata{
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
		CacheControl: aws.ToString(out.CacheControl),
		Custom:       out.Metadata,
	}, nil
}
