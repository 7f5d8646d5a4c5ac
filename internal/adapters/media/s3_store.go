package media

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/inthetow/backend/internal/domain/providers"
	"github.com/inthetow/backend/pkg/config"
)

const s3KeyPrefix = "photos/"

// S3Store keeps photos in an S3 bucket and hands out presigned GET URLs
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ providers.MediaStore = (*S3Store)(nil)

// NewS3Store builds a store from an AWS config. A non-empty endpoint switches to
// path-style addressing for S3-compatible servers.
func NewS3Store(awsCfg aws.Config, bucket, endpoint string) *S3Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// LoadS3Store resolves credentials from the default AWS chain
func LoadS3Store(ctx context.Context, cfg *config.MediaConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Store(awsCfg, cfg.S3Bucket, cfg.S3Endpoint), nil
}

// Store uploads data under a fresh token
func (s *S3Store) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	token := NewToken(contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s3KeyPrefix + token),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	return token, nil
}

// URLFor presigns a GET for token
func (s *S3Store) URLFor(ctx context.Context, token string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3KeyPrefix + token),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign media URL: %w", err)
	}
	return req.URL, nil
}
