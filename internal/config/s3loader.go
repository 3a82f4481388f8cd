package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter is the subset of the S3 client used to read config objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads a JSON config object once at startup.
type S3Loader struct {
	client ObjectGetter
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Loader creates a loader. A nil client disables loading.
func NewS3Loader(client ObjectGetter, bucket, key string, logger *slog.Logger) *S3Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Loader{client: client, bucket: bucket, key: key, logger: logger}
}

// IsEnabled returns true if S3 is configured.
func (l *S3Loader) IsEnabled() bool {
	return l != nil && l.client != nil
}

// Load fetches the object and validates that it is JSON.
// Returns (nil, nil) when S3 is disabled or the object does not exist.
func (l *S3Loader) Load(ctx context.Context) ([]byte, error) {
	if !l.IsEnabled() {
		return nil, nil
	}

	resp, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &l.bucket,
		Key:    &l.key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			l.logger.Debug("S3 config file not found (using defaults)", "bucket", l.bucket, "key", l.key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", l.bucket, l.key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", l.bucket, l.key, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("s3://%s/%s is not valid JSON", l.bucket, l.key)
	}

	l.logger.Info("S3 config fetched", "bucket", l.bucket, "key", l.key, "size", len(data))
	return data, nil
}
