package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	region     string
	publicRead bool
	publicBase string
}

// NewS3Store uploads resumes to S3_BUCKET using the default AWS credential chain.
func NewS3Store(ctx context.Context, publicBase string) (Store, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET required when enabling s3 storage")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &s3Store{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		prefix:     os.Getenv("S3_PREFIX"),
		region:     cfg.Region,
		publicRead: !strings.EqualFold(os.Getenv("S3_PUBLIC_READ"), "false"),
		publicBase: publicBase,
	}, nil
}

func (s *s3Store) Name() string {
	return "s3"
}

func (s *s3Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	acl := types.ObjectCannedACLPrivate
	if s.publicRead {
		acl = types.ObjectCannedACLPublicRead
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(joinKey(s.prefix, key)),
		Body:        bytes.NewReader(data),
		ACL:         acl,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"source": "resume-upload",
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) PublicURL(key string) string {
	if s.publicBase != "" {
		return publicURL(s.publicBase, joinKey(s.prefix, key))
	}
	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region)
	return publicURL(base, joinKey(s.prefix, key))
}
