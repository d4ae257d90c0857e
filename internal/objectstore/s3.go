package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// S3Store is the primary object-store adapter, backed by any
// S3-compatible endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3-compatible client from configuration, following
// the same static-credentials + optional custom-endpoint construction the
// rest of the corpus uses for object storage.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("configure object store client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data under key, returning an "s3://bucket/key" reference.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Upstream("object store upload failed")
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get retrieves an object by its "s3://bucket/key" reference.
func (s *S3Store) Get(ctx context.Context, ref string) (*Object, error) {
	_, key, ok := parseS3Ref(ref)
	if !ok {
		return nil, errors.NotFound("image")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.NotFound("image")
	}

	contentType := "image/jpeg"
	if out.ContentType != nil && *out.ContentType != "" {
		contentType = *out.ContentType
	}
	return &Object{Body: out.Body, ContentType: contentType}, nil
}

// Classify reports KindPrimaryStore for any s3:// reference.
func (s *S3Store) Classify(ref string) Kind {
	if strings.HasPrefix(ref, "s3://") {
		return KindPrimaryStore
	}
	return ""
}

func parseS3Ref(ref string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(ref, "s3://") {
		return "", "", false
	}
	rest := strings.TrimPrefix(ref, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
