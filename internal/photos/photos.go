// Package photos archives normalized meal photos in S3-compatible object
// storage so history entries can reference a key instead of carrying inline
// image data. It is optional; without it photos stay inline as data URIs.
package photos

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DanielRv555/op-calorie-vision/internal/config"
)

// DownloadURLTTL is how long presigned photo links stay valid. Long enough
// for a history page view, short enough that links do not circulate.
const DownloadURLTTL = 15 * time.Minute

// Service defines the photo archive operations
type Service interface {
	// Store uploads photo bytes under the given key
	Store(ctx context.Context, key string, data []byte, contentType string) error

	// DownloadURL creates a time-limited presigned URL for viewing a photo
	DownloadURL(ctx context.Context, key string) (string, error)

	// Delete removes a photo from the archive
	Delete(ctx context.Context, key string) error

	// Health checks if the archive is accessible
	Health(ctx context.Context) error
}

type service struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *slog.Logger
}

// New creates a photo archive against an S3-compatible endpoint (MinIO in
// development, any S3 in production).
func New(ctx context.Context, cfg config.S3, logger *slog.Logger) (Service, error) {
	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s", protocol, cfg.Endpoint)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing is required for MinIO.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true
	})

	s := &service{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		logger:    logger,
	}

	if err := s.ensureBucketExists(ctx); err != nil {
		logger.Warn("failed to ensure photo bucket exists", "bucket", cfg.Bucket, "error", err)
	}

	return s, nil
}

func (s *service) ensureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("created photo bucket", "bucket", s.bucket)
	return nil
}

func (s *service) Store(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("photo key cannot be empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to store photo %s: %w", key, err)
	}
	return nil
}

func (s *service) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("photo key cannot be empty")
	}

	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = DownloadURLTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign photo %s: %w", key, err)
	}

	return request.URL, nil
}

func (s *service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("photo key cannot be empty")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo %s: %w", key, err)
	}
	return nil
}

func (s *service) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("photo archive health check failed: %w", err)
	}
	return nil
}
