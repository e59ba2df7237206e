package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/coco-family/coco-backend/internal/platform/envutil"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

// S3Config holds the settings for an S3-compatible store. R2 is the
// production target; any endpoint speaking the S3 protocol works.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
}

// S3ConfigFromEnv reads R2_* settings. ok=false means the object store is
// not configured, which the audio endpoints surface as 503.
func S3ConfigFromEnv() (S3Config, bool) {
	endpoint, ok := envutil.Require("R2_ENDPOINT")
	if !ok {
		return S3Config{}, false
	}
	bucket := envutil.String("R2_BUCKET_NAME", "coco-audio-recordings")
	return S3Config{
		Endpoint:        endpoint,
		AccessKeyID:     envutil.String("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: envutil.String("R2_SECRET_ACCESS_KEY", ""),
		Bucket:          bucket,
		PublicBaseURL:   envutil.String("R2_PUBLIC_BASE_URL", fmt.Sprintf("https://%s.r2.cloudflarestorage.com", bucket)),
	}, true
}

type s3Store struct {
	log    *logger.Logger
	client *s3.Client
	bucket string
	public string
}

func NewS3Store(log *logger.Logger, cfg S3Config) (Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})
	serviceLog := log.With("service", "S3Store")
	serviceLog.Info("Object storage initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &s3Store{
		log:    serviceLog,
		client: client,
		bucket: cfg.Bucket,
		public: cfg.PublicBaseURL,
	}, nil
}

func (s *s3Store) Put(ctx context.Context, key string, body io.Reader, contentType string, meta ObjectMetadata) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(meta) > 0 {
		input.Metadata = meta
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("objectstore: put %q: %w", key, err)
	}
	return nil
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: get %q: %w", key, err)
	}
	return out.Body, nil
}

func (s *s3Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.public, key)
}
