package objstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"quarry/internal/config"
	"quarry/internal/domain"
)

// Compile-time check.
var _ Store = (*S3Store)(nil)

// S3Store lists and presigns objects in S3-compatible storage. Path-style
// addressing is the default because most self-hosted S3 endpoints require it.
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Store creates an S3Store from static credentials in the config.
func NewS3Store(cfg *config.Config) (*S3Store, error) {
	if !cfg.HasS3Config() {
		return nil, fmt.Errorf("S3 config is incomplete")
	}

	opts := s3.Options{
		Region: *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			*cfg.S3KeyID, *cfg.S3Secret, "",
		),
		UsePathStyle: cfg.S3URLStyle != "vhost",
	}
	if cfg.S3Endpoint != nil {
		endpoint := *cfg.S3Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}

	client := s3.New(opts)
	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
	}, nil
}

// List enumerates objects under an s3://bucket/prefix location matching pattern.
func (s *S3Store) List(ctx context.Context, location, pattern string) ([]domain.StorageObject, error) {
	bucket, prefix, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var objects []domain.StorageObject
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := key
			if prefix != "" {
				rel = strings.TrimPrefix(key, prefix+"/")
			}
			if !MatchPattern(pattern, rel) {
				continue
			}
			objects = append(objects, domain.StorageObject{
				Path:      "s3://" + bucket + "/" + key,
				SizeBytes: aws.ToInt64(obj.Size),
			})
		}
	}
	return objects, nil
}

// PresignDownload generates a presigned GET URL for an s3:// object.
func (s *S3Store) PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error) {
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return "", err
	}

	result, err := s.presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign GetObject for %q: %w", path, err)
	}
	return result.URL, nil
}

// parseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
func parseS3Path(s3Path string) (bucket, key string, err error) {
	bucket, key, err = parseS3Location(s3Path)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in S3 path %q", s3Path)
	}
	return bucket, key, nil
}

// parseS3Location is like parseS3Path but permits an empty key, for bucket-root
// dataset locations.
func parseS3Location(location string) (bucket, prefix string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", location, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("expected s3:// scheme, got %q in %q", u.Scheme, location)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty bucket in S3 path %q", location)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
