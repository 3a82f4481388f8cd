package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jmylchreest/codecredit-api/internal/config"
)

// NewS3Client builds a client for the configured S3-compatible store.
// Returns nil when storage is not configured.
func NewS3Client(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*s3.Client, error) {
	if !cfg.StorageEnabled {
		logger.Info("object storage disabled - no bucket configured")
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Tigris, MinIO and R2 need an explicit endpoint and path-style addressing.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true
	})

	logger.Info("object storage initialized", "bucket", cfg.StorageBucket, "endpoint", cfg.StorageEndpoint)
	return client, nil
}
