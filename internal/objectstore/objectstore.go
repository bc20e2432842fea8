// Package objectstore stores frames in an S3 compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/ubuntu/decorate"
)

// defaultRegion is the region buckets are created in without a location constraint.
const defaultRegion = "us-east-1"

// Config is the object store connection configuration.
type Config struct {
	Endpoint  string `mapstructure:"store-endpoint"`
	Region    string `mapstructure:"store-region"`
	AccessKey string `mapstructure:"store-access-key"`
	SecretKey string `mapstructure:"store-secret-key"`
	Bucket    string `mapstructure:"store-bucket"`
}

// Store uploads files to a single bucket.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
	log      *slog.Logger
}

type options struct {
	httpClient aws.HTTPClient
	log        *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithHTTPClient sets the HTTP client used to reach the store.
func WithHTTPClient(c aws.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger sets the logger of the Store.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// New returns a Store for the bucket and endpoint of cfg.
// Requests use path style addressing, are attempted once,
// and only carry checksums when the operation requires them.
// Without an access key, requests are sent anonymously.
func New(cfg Config, args ...Option) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint is not set")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("object store bucket is not set")
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	opts := options{log: slog.Default()}
	for _, opt := range args {
		opt(&opts)
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}

	awsCfg := aws.Config{
		Region:                     cfg.Region,
		Credentials:                creds,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if opts.httpClient != nil {
		awsCfg.HTTPClient = opts.httpClient
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		o.RetryMaxAttempts = 1
	})

	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		log:      opts.log,
	}, nil
}

// Bucket returns the name of the bucket files are uploaded to.
func (s *Store) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) (err error) {
	defer decorate.OnError(&err, "could not ensure bucket %q exists", s.bucket)

	_, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		s.log.Debug("Bucket already exists", "bucket", s.bucket)
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err = s.client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		s.log.Debug("Bucket was created concurrently", "bucket", s.bucket)
		return nil
	}
	if err != nil {
		return err
	}

	s.log.Info("Created bucket", "bucket", s.bucket)
	return nil
}

// Upload stores the file at path under its base name, replacing any object with the same key.
// It returns the object key.
func (s *Store) Upload(ctx context.Context, path string) (key string, err error) {
	defer decorate.OnError(&err, "could not upload %q", path)

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key = filepath.Base(path)
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	s.log.Debug("Uploaded object", "bucket", s.bucket, "key", key)
	return key, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
