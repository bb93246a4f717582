package storage

import (
	"bytes"
	"context"
	"fmt"

	"lab-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore writes objects to an S3-compatible bucket (Cloudflare R2)
type ObjectStore struct {
	client *s3.Client
	bucket string
}

// NewR2Store builds a client for the configured R2 endpoint
func NewR2Store(ctx context.Context, cfg *config.Config) (*ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2.AccessKey,
			cfg.R2.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.R2.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure R2 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2.Endpoint)
		o.UsePathStyle = true
		// R2 rejects the streaming checksum trailers the SDK adds by default
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	return &ObjectStore{client: client, bucket: cfg.R2.Bucket}, nil
}

// Put uploads body under key
func (s *ObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
