package reliability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrUploadsSuspended is returned while the circuit breaker is open
var ErrUploadsSuspended = errors.New("backup uploads suspended after repeated failures")

// Uploader stores a backup object under key
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// S3Config holds the destination of backups on S3 compatible storage
type S3Config struct {
	Bucket    string
	Endpoint  string // empty for AWS, set for R2, MinIO and friends
	Region    string
	AccessKey string
	SecretKey string
}

// S3Uploader uploads objects with the multipart upload manager
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// NewS3Uploader creates an uploader. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		log:      log.With().Str("component", "s3_uploader").Logger(),
	}, nil
}

// Upload streams body to bucket/key
func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader) error {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.log.Debug().Str("key", key).Str("location", out.Location).Msg("Object uploaded")
	return nil
}

// BreakerUploader stops calling the wrapped uploader after consecutive
// failures and retries after the breaker timeout.
type BreakerUploader struct {
	inner   Uploader
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerUploader wraps inner with a circuit breaker that opens after
// three consecutive failures.
func NewBreakerUploader(inner Uploader, timeout time.Duration, log zerolog.Logger) *BreakerUploader {
	l := log.With().Str("component", "backup_breaker").Logger()
	settings := gobreaker.Settings{
		Name:     "backup-upload",
		Interval: time.Hour,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}
	return &BreakerUploader{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Upload forwards to the wrapped uploader unless the breaker is open
func (b *BreakerUploader) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Upload(ctx, key, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUploadsSuspended
	}
	return err
}

// State returns the breaker state name
func (b *BreakerUploader) State() string {
	return b.breaker.State().String()
}
