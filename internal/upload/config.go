package upload

import (
	"context"
	"fmt"

	"github.com/kuitang/notebook/internal/s3client"
)

// Config selects and configures the upload strategy.
type Config struct {
	// BucketName, AccessKeyID and SecretAccessKey must all be set to enable
	// real uploads. Any of them missing selects the placeholder backend.
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string

	Endpoint     string
	Region       string
	PublicURL    string
	UsePathStyle bool

	// ForcePlaceholder selects the placeholder even when credentials are set.
	ForcePlaceholder bool

	MaxBytes int64
}

// Configured reports whether all three storage credentials are present.
func (c Config) Configured() bool {
	return c.BucketName != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// NewFromConfig builds a Gateway with the strategy cfg selects.
func NewFromConfig(ctx context.Context, cfg Config) (*Gateway, error) {
	opts := []Option{WithMaxBytes(cfg.MaxBytes)}
	if cfg.ForcePlaceholder || !cfg.Configured() {
		return New(NewPlaceholderBackend(), opts...), nil
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.Endpoint,
		Region:          region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		BucketName:      cfg.BucketName,
		PublicURL:       cfg.PublicURL,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: create s3 client: %w", err)
	}
	return New(NewS3Backend(client), opts...), nil
}
