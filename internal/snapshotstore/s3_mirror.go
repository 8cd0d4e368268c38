package snapshotstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures the S3-backed Mirror.
type S3Config struct {
	Bucket         string
	Key            string
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// S3Mirror uploads/downloads the snapshot as a single object. Re-targeted
// from the teacher's block-store S3 backend, which wrote many
// content-addressed objects; a snapshot is one object, overwritten on
// every Save.
type S3Mirror struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Mirror builds an S3Mirror from an existing client.
func NewS3Mirror(client *s3.Client, cfg S3Config) *S3Mirror {
	return &S3Mirror{client: client, bucket: cfg.Bucket, key: cfg.Key}
}

// NewS3MirrorFromConfig loads AWS credentials/region from the environment
// and constructs the S3 client, for the common case of no pre-existing
// client.
func NewS3MirrorFromConfig(ctx context.Context, cfg S3Config) (*S3Mirror, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return NewS3Mirror(client, cfg), nil
}

// Upload writes the snapshot to the configured bucket/key.
func (m *S3Mirror) Upload(ctx context.Context, data []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("snapshotstore: s3 put object: %w", err)
	}
	return nil
}

// Download fetches the snapshot object, translating a missing key into
// ErrNoMirror so Load's fallback logic treats it the same as no mirror at
// all.
func (m *S3Mirror) Download(ctx context.Context) ([]byte, error) {
	resp, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrNoMirror
		}
		return nil, fmt.Errorf("snapshotstore: s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: read s3 object body: %w", err)
	}
	return data, nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound") || strings.Contains(s, "404")
}

var _ Mirror = (*S3Mirror)(nil)
