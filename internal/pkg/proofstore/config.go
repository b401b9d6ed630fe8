package proofstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/digiworld/backoffice/internal/pkg/env"
)

// Config holds proof storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Optional CDN or bucket website in front of the objects
	Enabled         bool
	LocalDir        string
	LocalBaseURL    string
}

// LoadConfig loads proof storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("S3_PUBLIC_BASE_URL", ""),
		Enabled:         env.GetEnv("S3_ENABLED", "false") == "true",
		LocalDir:        env.GetEnv("PROOF_LOCAL_DIR", "./uploads"),
		LocalBaseURL:    env.GetEnv("PROOF_LOCAL_BASE_URL", "/uploads"),
	}

	// Validate required fields if S3 is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 is enabled")
		}
	}

	return config, nil
}

// ObjectURL is the address the admin UI uses to display a stored proof
func (c *Config) ObjectURL(key string) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/") + "/" + key
	}
	if c.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.EndpointURL, "/"), c.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, key)
}

// ObjectKey generates the storage key of a proof image.
// Format: proofs/YYYY/MM/<id>.jpg
func ObjectKey(id string, at time.Time) string {
	return fmt.Sprintf("proofs/%04d/%02d/%s.jpg", at.Year(), int(at.Month()), id)
}
