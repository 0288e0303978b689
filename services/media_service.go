package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ImageUploader is what the services that store user-visible images depend
// on. MediaService is the production implementation.
type ImageUploader interface {
	UploadImage(ctx context.Context, data []byte, opts UploadOptions) (string, error)
}

// MediaService uploads images to an S3-compatible bucket (R2 in production)
// and hands back a durable public URL. Everything that stores user-visible
// images goes through here first; a failed upload aborts the calling flow.
type MediaService struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewMediaService(ctx context.Context) (*MediaService, error) {
	accountID := os.Getenv("STORAGE_ACCOUNT_ID")
	accessKeyID := os.Getenv("STORAGE_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("STORAGE_ACCESS_KEY_SECRET")
	bucket := os.Getenv("STORAGE_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET_NAME environment variable is not set")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	cdnBaseURL := os.Getenv("CDN_BASE_URL")
	if cdnBaseURL == "" {
		cdnBaseURL = endpoint
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &MediaService{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: cdnBaseURL,
	}, nil
}

type UploadOptions struct {
	// Folder is the object key prefix, e.g. "checkins" or "gincana-prizes".
	Folder string
	// Name overrides the generated object name. Extension included.
	Name string
	// ContentType of the payload, e.g. "image/jpeg".
	ContentType string
}

// UploadImage puts the raw image bytes into the bucket and returns its public
// URL.
func (s *MediaService) UploadImage(ctx context.Context, data []byte, opts UploadOptions) (string, error) {
	name := opts.Name
	if name == "" {
		name = uuid.New().String()
	}
	key := path.Join(opts.Folder, name)

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return fmt.Sprintf("%s/%s", s.cdnBaseURL, key), nil
}
